package pdf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotPDF is returned when the buffer does not start with a PDF header.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrEncrypted is returned for documents carrying an /Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted documents are not supported")
	// ErrPageRange is returned for a page index outside [0, NumPages).
	ErrPageRange = errors.New("page index out of range")
	// ErrClosed is returned by operations on a closed document.
	ErrClosed = errors.New("document is closed")
	// ErrUnsupportedContent matches an *UnsupportedContentError.
	ErrUnsupportedContent = errors.New("unsupported content")
)

// UnsupportedContentError reports a page that uses constructs the renderer
// cannot draw, so its raster would be missing ink.
type UnsupportedContentError struct {
	Page       int
	Constructs []string
}

func (e *UnsupportedContentError) Error() string {
	return "cannot render " + strings.Join(e.Constructs, ", ")
}

func (e *UnsupportedContentError) Unwrap() error { return ErrUnsupportedContent }

// DanglingReferenceError reports a reference to an object number the
// document never allocated.
type DanglingReferenceError struct {
	Ref Reference
	// Holder is the object number containing the reference; 0 for the trailer.
	Holder int
}

func (e *DanglingReferenceError) Error() string {
	if e.Holder == 0 {
		return fmt.Sprintf("trailer references unallocated object %s", e.Ref)
	}
	return fmt.Sprintf("object %d references unallocated object %s", e.Holder, e.Ref)
}
