//go:build mupdf

package flatten

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

// muPDFRasterizer renders with MuPDF through go-fitz. MuPDF opens the
// bytes the document was loaded from; grafting only ever touches the page
// already rendered, so later pages are unaffected.
type muPDFRasterizer struct {
	doc *fitz.Document
	dpi float64
}

// MuPDFAvailable reports whether the binary was built with MuPDF.
const MuPDFAvailable = true

func newMuPDFRasterizer(doc *pdf.Document, cfg Config) (Rasterizer, error) {
	fd, err := fitz.NewFromMemory(doc.Bytes())
	if err != nil {
		return nil, fmt.Errorf("mupdf: %w", err)
	}
	return &muPDFRasterizer{doc: fd, dpi: 72 * cfg.Scale}, nil
}

func (m *muPDFRasterizer) RenderPage(index int) (*pdf.Pixmap, error) {
	if n := m.doc.NumPage(); index < 0 || index >= n {
		return nil, fmt.Errorf("%w: %d of %d", pdf.ErrPageRange, index, n)
	}
	img, err := m.doc.ImageDPI(index, m.dpi)
	if err != nil {
		return nil, fmt.Errorf("mupdf: %w", err)
	}
	return pdf.PixmapFromImage(img), nil
}

func (m *muPDFRasterizer) Close() error {
	return m.doc.Close()
}
