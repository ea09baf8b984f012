// Package server exposes a flatten.Service over HTTP. A submission is
// answered with a stream of frames: the page count, one progress frame per
// page, and finally the flattened PDF or an error.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/novvoo/go-flatten/pkg/flatten"
)

// DefaultMaxSize bounds request bodies when Config.MaxSize is zero.
const DefaultMaxSize = 64 << 20

// Config configures the handler.
type Config struct {
	Service *flatten.Service
	// MaxSize is the largest accepted document in bytes.
	MaxSize int64
	Logger  *slog.Logger
}

type handler struct {
	svc     *flatten.Service
	maxSize int64
	log     *slog.Logger
}

// NewHandler returns the HTTP surface:
//
//	GET  /ready    200 once the service accepts documents, 503 before
//	POST /flatten  body is the PDF; the response is a frame stream
func NewHandler(cfg Config) http.Handler {
	h := &handler{svc: cfg.Service, maxSize: cfg.MaxSize, log: cfg.Logger}
	if h.maxSize <= 0 {
		h.maxSize = DefaultMaxSize
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ready", h.ready)
	mux.HandleFunc("POST /flatten", h.flatten)
	return mux
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	if !h.svc.IsReady() {
		http.Error(w, "initializing", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ready\n")
}

type outcome struct {
	res *flatten.Result
	err error
}

func (h *handler) flatten(w http.ResponseWriter, r *http.Request) {
	if !h.svc.IsReady() {
		http.Error(w, flatten.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	input, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// A run cannot be aborted once it has started, so it outlives the
	// client.
	ctx := context.WithoutCancel(r.Context())
	mb := flatten.NewMailbox()
	done := make(chan outcome, 1)
	go func() {
		res, err := h.svc.Flatten(ctx, input, mb.Post)
		mb.Close()
		done <- outcome{res, err}
	}()

	var s *stream
	for e := range mb.Events() {
		if s == nil {
			s = h.startStream(w, r)
		}
		switch e.Kind {
		case flatten.EventTotalPages:
			s.json(FrameTotalPages, TotalPagesPayload{TotalPages: e.Value})
		case flatten.EventPageDone:
			s.json(FramePageDone, PageDonePayload{PageDone: e.Value})
		}
	}
	out := <-done

	if s == nil {
		switch {
		case errors.Is(out.err, flatten.ErrBusy):
			http.Error(w, out.err.Error(), http.StatusConflict)
			return
		case errors.Is(out.err, flatten.ErrNotReady):
			http.Error(w, out.err.Error(), http.StatusServiceUnavailable)
			return
		}
		s = h.startStream(w, r)
	}
	defer s.close()

	if out.err != nil {
		h.log.Info("flatten request failed", "remote", r.RemoteAddr, "error", out.err)
		s.json(FrameError, errorPayload(out.err))
		return
	}
	h.log.Info("flatten request done", "remote", r.RemoteAddr, "pages", out.res.Pages, "output_size", len(out.res.PDF))
	s.raw(FrameResult, out.res.PDF)
}

// startStream commits the response headers. The file name for the result
// goes in Content-Disposition since the frames carry none.
func (h *handler) startStream(w http.ResponseWriter, r *http.Request) *stream {
	method := negotiate(r.Header.Get("Accept-Encoding"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Add("Vary", "Accept-Encoding")
	if cd := contentDisposition(r.URL.Query().Get("name")); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	}
	fw, err := method.Writer(w)
	if err != nil {
		h.log.Warn("compression unavailable, sending identity", "method", method.Name(), "error", err)
		w.Header().Del("Content-Encoding")
		fw, _ = Identity{}.Writer(w)
	}
	w.WriteHeader(http.StatusOK)
	return &stream{w: fw, log: h.log.With("remote", r.RemoteAddr, "encoding", method.Name())}
}

func errorPayload(err error) ErrorPayload {
	p := ErrorPayload{Kind: "InternalError", Message: err.Error(), Page: -1}
	var fe *flatten.Error
	if errors.As(err, &fe) {
		p.Kind = fe.Kind.String()
		p.Page = fe.Page
	}
	return p
}

// contentDisposition names the download after the submitted file.
func contentDisposition(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return ""
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	return mime.FormatMediaType("attachment", map[string]string{"filename": stem + "-flattened.pdf"})
}
