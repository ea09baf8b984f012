package flatten

import (
	"github.com/novvoo/go-flatten/pkg/pdf"
)

// Rasterizer renders the pages of one loaded document.
type Rasterizer interface {
	RenderPage(index int) (*pdf.Pixmap, error)
	Close() error
}

// nativeRasterizer renders with the pure Go renderer. It reads the live
// document, so a page is always rendered as it stands at that moment.
type nativeRasterizer struct {
	*pdf.PageRenderer
}

func (nativeRasterizer) Close() error { return nil }

func newRasterizer(doc *pdf.Document, cfg Config) (Rasterizer, error) {
	if cfg.Backend == BackendMuPDF {
		return newMuPDFRasterizer(doc, cfg)
	}
	return nativeRasterizer{pdf.NewPageRenderer(doc, pdf.RenderOptions{
		Scale:   cfg.Scale,
		Fonts:   cfg.Fonts,
		Logger:  cfg.Logger,
		Lenient: cfg.Lenient,
	})}, nil
}
