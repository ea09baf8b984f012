package flatten

import (
	"errors"
	"fmt"
)

// Kind classifies the stage a run failed in.
type Kind int

const (
	KindDocumentOpen Kind = iota + 1
	KindPageRender
	KindGraft
	KindSerialize
)

func (k Kind) String() string {
	switch k {
	case KindDocumentOpen:
		return "DocumentOpenError"
	case KindPageRender:
		return "PageRenderError"
	case KindGraft:
		return "GraftError"
	case KindSerialize:
		return "SerializeError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the failure of a run. Any error aborts the whole document.
type Error struct {
	Kind Kind
	// Page is the zero-based page being processed, or -1.
	Page int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Page >= 0 {
		return fmt.Sprintf("%s: page %d: %v", e.Kind, e.Page, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below regardless of page and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrDocumentOpen = &Error{Kind: KindDocumentOpen, Page: -1}
	ErrPageRender   = &Error{Kind: KindPageRender, Page: -1}
	ErrGraft        = &Error{Kind: KindGraft, Page: -1}
	ErrSerialize    = &Error{Kind: KindSerialize, Page: -1}
)

var (
	// ErrNotReady is returned while the toolkit is initializing, and for
	// good if initialization failed.
	ErrNotReady = errors.New("flatten: service not ready")
	// ErrBusy is returned when a document is submitted while another run
	// is in flight.
	ErrBusy = errors.New("flatten: a document is already being processed")
)

func wrap(kind Kind, page int, err error) error {
	return &Error{Kind: kind, Page: page, Err: err}
}

// KindOf returns the kind of a run error, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
