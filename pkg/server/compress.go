package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionMethod wraps a response in a content encoding.
type CompressionMethod interface {
	Name() string
	Writer(w http.ResponseWriter) (FlusherWriter, error)
}

// FlusherWriter pushes buffered output to the client on Flush.
type FlusherWriter interface {
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// GzipCompression encodes responses with gzip.
type GzipCompression struct{}

func (GzipCompression) Name() string { return "gzip" }

func (GzipCompression) Writer(w http.ResponseWriter) (FlusherWriter, error) {
	w.Header().Set("Content-Encoding", "gzip")
	return &gzipFlusherWriter{gz: gzip.NewWriter(w), w: w}, nil
}

type gzipFlusherWriter struct {
	gz *gzip.Writer
	w  http.ResponseWriter
}

func (g *gzipFlusherWriter) Write(p []byte) (int, error) { return g.gz.Write(p) }

func (g *gzipFlusherWriter) Flush() error {
	if err := g.gz.Flush(); err != nil {
		return err
	}
	return http.NewResponseController(g.w).Flush()
}

func (g *gzipFlusherWriter) Close() error { return g.gz.Close() }

// ZstdCompression encodes responses with zstd.
type ZstdCompression struct{}

func (ZstdCompression) Name() string { return "zstd" }

func (ZstdCompression) Writer(w http.ResponseWriter) (FlusherWriter, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	w.Header().Set("Content-Encoding", "zstd")
	return &zstdFlusherWriter{zw: zw, w: w}, nil
}

type zstdFlusherWriter struct {
	zw *zstd.Encoder
	w  http.ResponseWriter
}

func (z *zstdFlusherWriter) Write(p []byte) (int, error) { return z.zw.Write(p) }

func (z *zstdFlusherWriter) Flush() error {
	if err := z.zw.Flush(); err != nil {
		return err
	}
	return http.NewResponseController(z.w).Flush()
}

func (z *zstdFlusherWriter) Close() error { return z.zw.Close() }

// Identity sends responses unencoded.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Writer(w http.ResponseWriter) (FlusherWriter, error) {
	return identityWriter{w}, nil
}

type identityWriter struct {
	w http.ResponseWriter
}

func (i identityWriter) Write(p []byte) (int, error) { return i.w.Write(p) }
func (i identityWriter) Flush() error                { return http.NewResponseController(i.w).Flush() }
func (i identityWriter) Close() error                { return nil }

// negotiate picks zstd, then gzip, then identity from Accept-Encoding.
// Codings with q=0 are refused.
func negotiate(header string) CompressionMethod {
	accepted := map[string]bool{}
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		q := 1.0
		for _, p := range strings.Split(params, ";") {
			if v, ok := strings.CutPrefix(strings.TrimSpace(p), "q="); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					q = f
				}
			}
		}
		if coding != "" {
			accepted[coding] = q > 0
		}
	}
	switch {
	case accepted["zstd"]:
		return ZstdCompression{}
	case accepted["gzip"]:
		return GzipCompression{}
	}
	return Identity{}
}
