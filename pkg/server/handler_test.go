package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unsafe"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novvoo/go-flatten/internal/testpdf"
	"github.com/novvoo/go-flatten/pkg/flatten"
)

func newTestHandler(t *testing.T, maxSize int64) http.Handler {
	t.Helper()
	cfg := flatten.DefaultConfig()
	cfg.Scale = 0.5
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := flatten.NewService(cfg)
	require.NoError(t, err)
	select {
	case <-svc.Ready():
	case <-time.After(30 * time.Second):
		t.Fatal("service did not become ready")
	}
	return NewHandler(Config{Service: svc, MaxSize: maxSize, Logger: cfg.Logger})
}

func readFrames(t *testing.T, r io.Reader) []Frame {
	t.Helper()
	var frames []Frame
	for {
		f, err := ReadFrame(r, 64<<20)
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestReady(t *testing.T) {
	h := newTestHandler(t, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFlattenStream(t *testing.T) {
	h := newTestHandler(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/flatten?name=report.pdf", bytes.NewReader(testpdf.TextDocument(3)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report-flattened.pdf`, rec.Header().Get("Content-Disposition"))

	frames := readFrames(t, rec.Body)
	require.Len(t, frames, 6)

	var total TotalPagesPayload
	assert.Equal(t, FrameTotalPages, frames[0].Type)
	require.NoError(t, json.Unmarshal(frames[0].Payload, &total))
	assert.Equal(t, 3, total.TotalPages)

	for i := 1; i <= 4; i++ {
		var done PageDonePayload
		assert.Equal(t, FramePageDone, frames[i].Type)
		require.NoError(t, json.Unmarshal(frames[i].Payload, &done))
		assert.Equal(t, i-1, done.PageDone)
	}

	last := frames[5]
	assert.Equal(t, FrameResult, last.Type)
	assert.True(t, bytes.HasPrefix(last.Payload, []byte("%PDF-")))
	pages, err := flatten.Verify(last.Payload)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestFlattenErrorFrame(t *testing.T) {
	h := newTestHandler(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/flatten", bytes.NewReader([]byte("%PDF-1.4\n")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	frames := readFrames(t, rec.Body)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameError, frames[0].Type)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(frames[0].Payload, &p))
	assert.Equal(t, "DocumentOpenError", p.Kind)
	assert.Equal(t, -1, p.Page)
	assert.NotEmpty(t, p.Message)
}

func TestFlattenTooLarge(t *testing.T) {
	h := newTestHandler(t, 16)
	req := httptest.NewRequest(http.MethodPost, "/flatten", bytes.NewReader(testpdf.TextDocument(1)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestFlattenMethod(t *testing.T) {
	h := newTestHandler(t, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flatten", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFlattenCompressed(t *testing.T) {
	h := newTestHandler(t, 0)
	input := testpdf.TextDocument(1)

	tests := []struct {
		accept string
		decode func(io.Reader) (io.Reader, error)
	}{
		{"gzip", func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{"gzip;q=0.5, zstd", func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) }},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/flatten", bytes.NewReader(input))
			req.Header.Set("Accept-Encoding", tt.accept)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			body, err := tt.decode(rec.Body)
			require.NoError(t, err)
			frames := readFrames(t, body)
			require.Len(t, frames, 4)
			assert.Equal(t, FrameResult, frames[3].Type)
		})
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "identity"},
		{"br", "identity"},
		{"gzip, deflate", "gzip"},
		{"gzip, zstd", "zstd"},
		{"zstd;q=0, gzip", "gzip"},
		{"GZIP", "gzip"},
		{"gzip;q=0", "identity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, negotiate(tt.header).Name(), tt.header)
	}
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, "", contentDisposition(""))
	assert.Equal(t, "attachment; filename=a-flattened.pdf", contentDisposition("dir/a.pdf"))
	assert.Equal(t, "attachment; filename=b-flattened.pdf", contentDisposition(`C:\docs\b.PDF`))
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, FrameResult, []byte("abcdef")))
	data := buf.Bytes()

	_, err := ReadFrame(bytes.NewReader(data[:3]), 64)
	assert.Error(t, err)
	_, err = ReadFrame(bytes.NewReader(data[:8]), 64)
	assert.Error(t, err)

	f, err := ReadFrame(bytes.NewReader(data), 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), f.Payload)
}

func TestReadFrameLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, FrameResult, []byte("abcdef")))
	_, err := ReadFrame(bytes.NewReader(buf.Bytes()), 5)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// A header alone announcing 4 GiB must fail without allocating.
	header := []byte{FrameResult, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err = ReadFrame(bytes.NewReader(header), 64<<20)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrameTooLarge(t *testing.T) {
	n := int64(MaxFramePayload) + 1
	if n > math.MaxInt {
		t.Skip("int cannot hold the length")
	}
	// The slice is never read: the length check comes first.
	b := make([]byte, 1)
	payload := unsafe.Slice(&b[0], int(n))

	var buf bytes.Buffer
	err := WriteFrame(&buf, FrameResult, payload)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len())
}
