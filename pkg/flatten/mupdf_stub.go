//go:build !mupdf

package flatten

import (
	"errors"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

// MuPDFAvailable reports whether the binary was built with MuPDF.
const MuPDFAvailable = false

var errNoMuPDF = errors.New("mupdf backend not compiled in (build with -tags mupdf)")

func newMuPDFRasterizer(*pdf.Document, Config) (Rasterizer, error) {
	return nil, errNoMuPDF
}
