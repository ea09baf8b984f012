// Package flatten turns every page of a PDF into a raster image layered
// back onto the page, for printing without font or layout surprises.
package flatten

import (
	"context"
	"time"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

// EventKind distinguishes progress events.
type EventKind int

const (
	// EventTotalPages is emitted once, right after the document is loaded.
	EventTotalPages EventKind = iota
	// EventPageDone is emitted after each page with its index, and once
	// more with the page count when the output is ready.
	EventPageDone
)

func (k EventKind) String() string {
	if k == EventTotalPages {
		return "totalPages"
	}
	return "pageDone"
}

// Event is a progress observation.
type Event struct {
	Kind  EventKind
	Value int
}

// Observer receives progress events. It must not block; see Mailbox.
type Observer func(Event)

// Result is a flattened document.
type Result struct {
	PDF   []byte
	Pages int
}

// Pipeline flattens documents one at a time.
type Pipeline struct {
	cfg Config
}

// NewPipeline validates cfg and returns a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg.withDefaults()}, nil
}

// Load opens input as a document. The input buffer is not modified.
func Load(input []byte) (*pdf.Document, error) {
	doc, err := pdf.NewDocument(input)
	if err != nil {
		return nil, wrap(KindDocumentOpen, -1, err)
	}
	return doc, nil
}

// Serialize writes the whole document.
func Serialize(doc *pdf.Document, compress bool) ([]byte, error) {
	out, err := doc.Save(pdf.WriteOptions{Compress: compress})
	if err != nil {
		return nil, wrap(KindSerialize, -1, err)
	}
	return out, nil
}

// Run flattens input. Pages are processed strictly in order, each rendered
// and then grafted before the next one starts. Any error aborts the run
// with no output and no further events. ctx is checked between pages.
func (p *Pipeline) Run(ctx context.Context, input []byte, observe Observer) (*Result, error) {
	if observe == nil {
		observe = func(Event) {}
	}
	log := p.cfg.Logger
	start := time.Now()

	doc, err := Load(input)
	if err != nil {
		log.Warn("document open failed", "size", len(input), "error", err)
		return nil, err
	}
	defer doc.Close()

	n := doc.NumPages()
	log.Info("flattening document", "size", len(input), "pages", n, "version", doc.Version, "repaired", doc.Repaired)
	observe(Event{Kind: EventTotalPages, Value: n})

	raster, err := newRasterizer(doc, p.cfg)
	if err != nil {
		return nil, wrap(KindPageRender, -1, err)
	}
	defer raster.Close()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pix, err := raster.RenderPage(i)
		if err != nil {
			log.Warn("page render failed", "page", i, "error", err)
			return nil, wrap(KindPageRender, i, err)
		}
		g, err := Graft(doc, i, pix, p.cfg.ResourceName)
		if err != nil {
			log.Warn("graft failed", "page", i, "error", err)
			return nil, err
		}
		log.Debug("page flattened", "page", i, "width", pix.Width, "height", pix.Height, "name", g.Name)
		observe(Event{Kind: EventPageDone, Value: i})
	}

	out, err := Serialize(doc, p.cfg.Compress)
	if err != nil {
		log.Warn("serialize failed", "error", err)
		return nil, err
	}
	observe(Event{Kind: EventPageDone, Value: n})
	log.Info("document flattened", "pages", n, "output_size", len(out), "duration", time.Since(start))
	return &Result{PDF: out, Pages: n}, nil
}
