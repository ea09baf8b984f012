// pdfflatten - replace every page of a PDF with a raster of itself
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/novvoo/go-flatten/internal/logging"
	"github.com/novvoo/go-flatten/pkg/flatten"
	"github.com/novvoo/go-flatten/pkg/pdf"
)

const version = "1.0.0"

func main() {
	scale := flag.Float64("scale", pdf.DefaultScale, "raster pixels per PDF unit")
	name := flag.String("name", flatten.DefaultResourceName, "XObject name for the page image")
	backend := flag.String("backend", flatten.BackendNative, "rasterizer: native or mupdf")
	noCompress := flag.Bool("no-compress", false, "write streams without Flate compression")
	verify := flag.Bool("verify", false, "check the output with an independent PDF reader")
	preview := flag.Int("preview", 0, "also write a PNG of this page (1-based) as <PDF-file>-N.png")
	lenient := flag.Bool("lenient", false, "flatten pages with content the renderer cannot draw, leaving it blank")
	var fonts []string
	flag.Func("font", "TrueType file searched for characters missing from the built-in faces (repeatable)", func(path string) error {
		fonts = append(fonts, path)
		return nil
	})
	quiet := flag.Bool("q", false, "don't print any messages")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "log as JSON lines")
	showVersion := flag.Bool("v", false, "print version info")
	help := flag.Bool("h", false, "print usage information")
	flag.BoolVar(help, "help", false, "print usage information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdfflatten version %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: pdfflatten [options] <PDF-file> [<output-file>]\n\n")
		fmt.Fprintf(os.Stderr, "The output defaults to <PDF-file> with a -flattened suffix.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("pdfflatten version %s\n", version)
		return
	}
	if *help || flag.NArg() < 1 {
		flag.Usage()
		if !*help {
			os.Exit(2)
		}
		return
	}

	level := *logLevel
	if *quiet {
		level = "error"
	}
	log, err := logging.New(os.Stderr, level, *logJSON)
	if err != nil {
		fatalf("%v", err)
	}

	input := flag.Arg(0)
	data, err := os.ReadFile(input)
	if err != nil {
		fatalf("reading input: %v", err)
	}

	cfg := flatten.Config{
		Scale:        *scale,
		ResourceName: *name,
		Backend:      *backend,
		Compress:     !*noCompress,
		Lenient:      *lenient,
		Logger:       log,
	}
	if len(fonts) > 0 {
		if cfg.Fonts, err = flatten.LoadFonts(fonts); err != nil {
			fatalf("%v", err)
		}
	}

	if *preview > 0 {
		out := fmt.Sprintf("%s-%d.png", stem(input), *preview)
		opts := pdf.RenderOptions{Scale: *scale, Fonts: cfg.Fonts, Logger: log, Lenient: *lenient}
		if err := writePreview(data, *preview-1, opts, out); err != nil {
			fatalf("preview: %v", err)
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
		}
	}
	p, err := flatten.NewPipeline(cfg)
	if err != nil {
		fatalf("%v", err)
	}

	total := 0
	res, err := p.Run(context.Background(), data, func(e flatten.Event) {
		if *quiet {
			return
		}
		switch {
		case e.Kind == flatten.EventTotalPages:
			total = e.Value
		case e.Value < total:
			fmt.Fprintf(os.Stderr, "\rPage %d/%d", e.Value+1, total)
		default:
			fmt.Fprintf(os.Stderr, "\r%d pages done   \n", total)
		}
	})
	if err != nil {
		if !*quiet && total > 0 {
			fmt.Fprintln(os.Stderr)
		}
		fatalf("%v", err)
	}

	if *verify {
		pages, err := flatten.Verify(res.PDF)
		if err != nil {
			fatalf("output failed verification: %v", err)
		}
		if pages != res.Pages {
			fatalf("output has %d pages, expected %d", pages, res.Pages)
		}
	}

	out := flag.Arg(1)
	if out == "" {
		out = stem(input) + "-flattened.pdf"
	}
	if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
		fatalf("writing output: %v", err)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Wrote %s (%d pages, %d bytes)\n", out, res.Pages, len(res.PDF))
	}
}

// writePreview renders one page of the input with the native renderer.
func writePreview(data []byte, index int, opts pdf.RenderOptions, out string) error {
	doc, err := pdf.NewDocument(data)
	if err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	defer doc.Close()
	pix, err := pdf.NewPageRenderer(doc, opts).RenderPage(index)
	if err != nil {
		return err
	}
	png, err := pix.EncodePNG()
	if err != nil {
		return err
	}
	return os.WriteFile(out, png, 0o644)
}

func stem(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".pdf") {
		return strings.TrimSuffix(path, ext)
	}
	return path
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pdfflatten: "+format+"\n", args...)
	os.Exit(1)
}
