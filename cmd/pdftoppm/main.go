// pdftoppm - render PDF pages to PPM/PNG with the flattening rasterizer
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/novvoo/go-flatten/internal/logging"
	"github.com/novvoo/go-flatten/pkg/pdf"
)

func main() {
	// Define flags
	firstPage := flag.Int("f", 1, "first page to convert")
	lastPage := flag.Int("l", 0, "last page to convert")
	resolution := flag.Float64("r", 144, "resolution in DPI")
	gray := flag.Bool("gray", false, "generate grayscale PGM output")
	png := flag.Bool("png", false, "generate PNG output")
	noAnnots := flag.Bool("hide-annotations", false, "do not draw annotation appearances")
	lenient := flag.Bool("lenient", false, "render content that cannot be drawn as blank instead of failing the page")
	quiet := flag.Bool("q", false, "don't print any messages")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	version := flag.Bool("v", false, "print version info")
	help := flag.Bool("h", false, "print usage information")
	flag.BoolVar(help, "help", false, "print usage information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdftoppm version 1.0.0\n")
		fmt.Fprintf(os.Stderr, "Copyright 2024 go-flatten authors\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pdftoppm [options] <PDF-file> [<output-root>]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Println("pdftoppm version 1.0.0")
		fmt.Println("Copyright 2024 go-flatten authors")
		return
	}

	if *help || flag.NArg() < 1 {
		flag.Usage()
		return
	}
	if *resolution <= 0 {
		fmt.Fprintf(os.Stderr, "Error: resolution must be positive\n")
		os.Exit(1)
	}

	log, err := logging.New(os.Stderr, *logLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pdfFile := flag.Arg(0)
	outputRoot := flag.Arg(1)
	if outputRoot == "" {
		outputRoot = strings.TrimSuffix(filepath.Base(pdfFile), filepath.Ext(pdfFile))
	}

	// Open PDF
	doc, err := pdf.Open(pdfFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PDF: %v\n", err)
		os.Exit(1)
	}
	defer doc.Close()

	ext := ".ppm"
	if *png {
		ext = ".png"
	} else if *gray {
		ext = ".pgm"
	}

	renderer := pdf.NewPageRenderer(doc, pdf.RenderOptions{
		Scale:         *resolution / 72,
		Logger:        log,
		NoAnnotations: *noAnnots,
		Lenient:       *lenient,
	})

	// Determine page range
	first := *firstPage
	last := *lastPage
	if first < 1 {
		first = 1
	}
	if last == 0 || last > doc.NumPages() {
		last = doc.NumPages()
	}

	failed := false
	for pageNum := first; pageNum <= last; pageNum++ {
		rendered, err := renderer.RenderPage(pageNum - 1)
		if err != nil {
			failed = true
			if !*quiet {
				fmt.Fprintf(os.Stderr, "Error rendering page %d: %v\n", pageNum, err)
			}
			continue
		}

		var outputFile string
		if last == first {
			outputFile = outputRoot + ext
		} else {
			outputFile = fmt.Sprintf("%s-%d%s", outputRoot, pageNum, ext)
		}

		if err := writeImage(outputFile, rendered, *png, *gray); err != nil {
			failed = true
			if !*quiet {
				fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputFile, err)
			}
			continue
		}

		if !*quiet {
			fmt.Printf("Wrote %s (%dx%d)\n", outputFile, rendered.Width, rendered.Height)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func writeImage(name string, pix *pdf.Pixmap, asPNG, gray bool) error {
	if asPNG {
		data, err := pix.EncodePNG()
		if err != nil {
			return err
		}
		return os.WriteFile(name, data, 0644)
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := pix.WritePPM(f, gray); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
