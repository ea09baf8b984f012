package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

var (
	firstPage    int
	lastPage     int
	box          bool
	printVersion bool
	printHelp    bool
)

func init() {
	flag.IntVar(&firstPage, "f", 1, "first page to examine")
	flag.IntVar(&lastPage, "l", 0, "last page to examine")
	flag.BoolVar(&box, "box", false, "print the page boxes, rotation and annotations")
	flag.BoolVar(&printVersion, "v", false, "print copyright and version info")
	flag.BoolVar(&printHelp, "h", false, "print usage information")
	flag.BoolVar(&printHelp, "help", false, "print usage information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdfinfo version 1.0.0\n")
		fmt.Fprintf(os.Stderr, "Copyright 2024 go-flatten authors\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pdfinfo [options] <PDF-file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  -f <int>          : first page to examine\n")
		fmt.Fprintf(os.Stderr, "  -l <int>          : last page to examine\n")
		fmt.Fprintf(os.Stderr, "  -box              : print the page boxes, rotation and annotations\n")
		fmt.Fprintf(os.Stderr, "  -v                : print copyright and version info\n")
		fmt.Fprintf(os.Stderr, "  -h                : print usage information\n")
		fmt.Fprintf(os.Stderr, "  -help             : print usage information\n")
	}
}

func main() {
	flag.Parse()

	if printVersion {
		fmt.Println("pdfinfo version 1.0.0")
		fmt.Println("Copyright 2024 go-flatten authors")
		os.Exit(0)
	}

	if printHelp {
		flag.Usage()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	inputFile := args[0]

	doc, err := pdf.Open(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Couldn't open file '%s': %v\n", inputFile, err)
		os.Exit(1)
	}
	defer doc.Close()

	info := infoDict(doc)
	for _, key := range []string{"Title", "Subject", "Keywords", "Author", "Creator", "Producer"} {
		fmt.Printf("%-16s%s\n", key+":", infoString(doc, info, key))
	}

	numPages := doc.NumPages()
	fmt.Printf("Pages:          %d\n", numPages)
	fmt.Printf("Repaired:       %s\n", boolToYesNo(doc.Repaired))

	if numPages > 0 {
		if page, err := doc.Page(0); err == nil {
			mediaBox := page.MediaBox
			fmt.Printf("Page size:      %.2f x %.2f pts", mediaBox.Width(), mediaBox.Height())
			if paperSize := detectPaperSize(mediaBox.Width(), mediaBox.Height()); paperSize != "" {
				fmt.Printf(" (%s)", paperSize)
			}
			fmt.Println()
			fmt.Printf("Page rot:       %d\n", page.Rotate)
			fmt.Printf("Flattened:      %s\n", boolToYesNo(isFlattened(doc, page)))
		}
	}

	if fileInfo, err := os.Stat(inputFile); err == nil {
		fmt.Printf("File size:      %d bytes\n", fileInfo.Size())
	}
	fmt.Printf("PDF version:    %s\n", doc.Version)

	if box {
		first, last := firstPage, lastPage
		if first < 1 {
			first = 1
		}
		if last < 1 || last > numPages {
			last = numPages
		}
		for i := first; i <= last; i++ {
			printPageBoxes(i, doc)
		}
	}
}

func infoDict(doc *pdf.Document) pdf.Dictionary {
	d, _ := doc.Resolve(doc.Trailer.Get("Info")).(pdf.Dictionary)
	return d
}

func infoString(doc *pdf.Document, info pdf.Dictionary, key string) string {
	if s, ok := doc.Resolve(info.Get(key)).(pdf.String); ok {
		return strings.TrimSpace(s.Text())
	}
	return ""
}

// isFlattened reports whether the page already carries a raster overlay
// from an earlier run.
func isFlattened(doc *pdf.Document, page *pdf.Page) bool {
	xobjects, ok := doc.Resolve(page.Resources.Get("XObject")).(pdf.Dictionary)
	if !ok {
		return false
	}
	for _, name := range xobjects.Keys() {
		if strings.HasPrefix(string(name), "ImageContent") {
			return true
		}
	}
	return false
}

func boolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func detectPaperSize(width, height float64) string {
	// Common paper sizes in points
	sizes := []struct {
		name string
		w, h float64
	}{
		{"letter", 612, 792},
		{"legal", 612, 1008},
		{"A4", 595.276, 841.89},
		{"A3", 841.89, 1190.55},
		{"A5", 419.528, 595.276},
		{"B5", 498.898, 708.661},
		{"executive", 522, 756},
		{"tabloid", 792, 1224},
	}

	const tolerance = 5.0

	for _, size := range sizes {
		// Check both orientations
		if (math.Abs(width-size.w) < tolerance && math.Abs(height-size.h) < tolerance) ||
			(math.Abs(width-size.h) < tolerance && math.Abs(height-size.w) < tolerance) {
			orientation := "portrait"
			if width > height {
				orientation = "landscape"
			}
			return fmt.Sprintf("%s, %s", size.name, orientation)
		}
	}

	return ""
}

func printPageBoxes(n int, doc *pdf.Document) {
	page, err := doc.Page(n - 1)
	if err != nil {
		return
	}
	if err := page.Err(); err != nil {
		fmt.Printf("Page %4d error:  %v\n", n, err)
		return
	}
	mediaBox := page.MediaBox
	cropBox := page.CropBox
	fmt.Printf("Page %4d MediaBox: %.2f %.2f %.2f %.2f\n", n,
		mediaBox.LLX, mediaBox.LLY, mediaBox.URX, mediaBox.URY)
	fmt.Printf("Page %4d CropBox:  %.2f %.2f %.2f %.2f\n", n,
		cropBox.LLX, cropBox.LLY, cropBox.URX, cropBox.URY)
	fmt.Printf("Page %4d rot:      %d\n", n, page.Rotate)

	printable := 0
	annots := page.Annotations()
	for i := range annots {
		if annots[i].Printable() {
			printable++
		}
	}
	fmt.Printf("Page %4d annots:   %d (%d printable)\n", n, len(annots), printable)
}
