// Package testpdf builds small PDF files for tests. Objects are written
// uncompressed with a classic cross-reference table, the same way a
// hand-written fixture would be.
package testpdf

import (
	"bytes"
	"fmt"
	"strings"
)

// Builder accumulates numbered object bodies.
type Builder struct {
	Version string
	bodies  []string
	trailer string
}

// New returns a builder for a PDF 1.4 file.
func New() *Builder {
	return &Builder{Version: "1.4"}
}

// Reserve allocates an object number whose body is set later.
func (b *Builder) Reserve() int {
	b.bodies = append(b.bodies, "null")
	return len(b.bodies)
}

// Add appends an object and returns its number.
func (b *Builder) Add(body string) int {
	b.bodies = append(b.bodies, body)
	return len(b.bodies)
}

// Set replaces the body of object num.
func (b *Builder) Set(num int, body string) {
	b.bodies[num-1] = body
}

// Stream appends a stream object. dict holds the dictionary entries
// without the surrounding << >> and without Length.
func (b *Builder) Stream(dict string, data []byte) int {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<<%s /Length %d>>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	return b.Add(buf.String())
}

// TrailerEntries adds entries to the trailer dictionary.
func (b *Builder) TrailerEntries(entries string) {
	b.trailer += " " + entries
}

// Bytes serializes the file with root as the catalog.
func (b *Builder) Bytes(root int) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", b.Version)
	offsets := make([]int, len(b.bodies))
	for i, body := range b.bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.bodies)+1)
	// Each entry is exactly 20 bytes.
	fmt.Fprintf(&buf, "%010d %05d f \r\n", 0, 65535)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d %05d n \r\n", off, 0)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d /Root %d 0 R%s>>\nstartxref\n%d\n%%%%EOF\n",
		len(b.bodies)+1, root, b.trailer, xref)
	return buf.Bytes()
}

// Page describes one page of a generated document.
type Page struct {
	MediaBox  string // e.g. "[0 0 612 792]"; letter size when empty
	Resources string // resource dictionary body; omitted when empty
	Content   string // content stream; the page has no Contents when empty
	Extra     string // further page dictionary entries
}

// Document builds a document whose pages share one Pages node.
func Document(pages ...Page) []byte {
	b := New()
	catalog := b.Reserve()
	tree := b.Reserve()
	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", b.AddPage(tree, p)))
	}
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))
	b.Set(tree, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d>>", strings.Join(kids, " "), len(pages)))
	return b.Bytes(catalog)
}

// AddPage adds a page object under parent and returns its number.
func (b *Builder) AddPage(parent int, p Page) int {
	box := p.MediaBox
	if box == "" {
		box = "[0 0 612 792]"
	}
	var dict strings.Builder
	fmt.Fprintf(&dict, "<</Type /Page /Parent %d 0 R /MediaBox %s", parent, box)
	if p.Resources != "" {
		fmt.Fprintf(&dict, " /Resources %s", p.Resources)
	}
	if p.Content != "" {
		fmt.Fprintf(&dict, " /Contents %d 0 R", b.Stream("", []byte(p.Content)))
	}
	if p.Extra != "" {
		dict.WriteString(" " + p.Extra)
	}
	dict.WriteString(">>")
	return b.Add(dict.String())
}

// HelveticaResources declares the standard font /F1.
const HelveticaResources = "<</Font <</F1 <</Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding>>>>>>"

// TextPage returns a letter-size page showing one line of text.
func TextPage(text string) Page {
	return Page{
		Resources: HelveticaResources,
		Content:   fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text),
	}
}

// TextDocument builds an n-page document with one line of text per page.
func TextDocument(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = TextPage(fmt.Sprintf("Page %d", i+1))
	}
	return Document(pages...)
}

// ShadingPage returns a page painting an axial shading with sh.
func ShadingPage() Page {
	return Page{
		Resources: "<</Shading <</Sh0 <</ShadingType 2 /ColorSpace /DeviceRGB /Coords [0 0 612 0] " +
			"/Function <</FunctionType 2 /Domain [0 1] /C0 [1 0 0] /C1 [0 0 1] /N 1>>>>>>>>",
		Content: "q /Sh0 sh Q",
	}
}

// CJKResources declares /F1 as the non-embedded Adobe-GB1 font STSong-Light
// addressed through the predefined Unicode CMap UniGB-UCS2-H.
const CJKResources = "<</Font <</F1 <</Type /Font /Subtype /Type0 /BaseFont /STSong-Light /Encoding /UniGB-UCS2-H " +
	"/DescendantFonts [<</Type /Font /Subtype /CIDFontType0 /BaseFont /STSong-Light " +
	"/CIDSystemInfo <</Registry (Adobe) /Ordering (GB1) /Supplement 4>> /DW 1000 " +
	"/FontDescriptor <</Type /FontDescriptor /FontName /STSong-Light /Flags 6 /FontBBox [-25 -254 1000 880] " +
	"/ItalicAngle 0 /Ascent 880 /Descent -120 /CapHeight 880 /StemV 93>>>>]>>>>>>"

// CJKPage returns a page showing the UTF-16 code units in hex with the
// font of CJKResources.
func CJKPage(hex string) Page {
	return Page{
		Resources: CJKResources,
		Content:   fmt.Sprintf("BT /F1 24 Tf 72 700 Td <%s> Tj ET", hex),
	}
}
