package flatten

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/novvoo/go-flatten/internal/testpdf"
	"github.com/novvoo/go-flatten/pkg/pdf"
)

func waitReady(t *testing.T, s *Service) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(30 * time.Second):
		t.Fatal("service did not become ready")
	}
}

func TestServiceNotReadyUntilInitialized(t *testing.T) {
	release := make(chan struct{})
	s, err := newService(testConfig(), func(Config) (*pdf.FontSet, error) {
		<-release
		return pdf.DefaultFontSet()
	})
	require.NoError(t, err)

	assert.False(t, s.IsReady())
	_, err = s.Flatten(context.Background(), testpdf.TextDocument(1), nil)
	assert.ErrorIs(t, err, ErrNotReady)

	close(release)
	waitReady(t, s)
	res, err := s.Flatten(context.Background(), testpdf.TextDocument(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
}

func TestServiceInitFailure(t *testing.T) {
	s, err := newService(testConfig(), func(Config) (*pdf.FontSet, error) {
		return nil, errors.New("no fonts")
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.IsReady())
	_, err = s.Flatten(context.Background(), testpdf.TextDocument(1), nil)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestServiceRejectsConcurrentRun(t *testing.T) {
	s, err := NewService(testConfig())
	require.NoError(t, err)
	waitReady(t, s)

	started := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Flatten(context.Background(), testpdf.TextDocument(2), func(e Event) {
			if e.Kind == EventTotalPages {
				close(started)
				<-proceed
			}
		})
		done <- err
	}()

	<-started
	_, err = s.Flatten(context.Background(), testpdf.TextDocument(1), nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(proceed)
	require.NoError(t, <-done)

	// Accepted again once the previous run has finished.
	_, err = s.Flatten(context.Background(), testpdf.TextDocument(1), nil)
	assert.NoError(t, err)
}

func TestServiceRejectsInvalidConfig(t *testing.T) {
	_, err := NewService(Config{Backend: "gs"})
	assert.Error(t, err)
}

func TestServiceMuPDFAvailability(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = BackendMuPDF
	fonts, err := defaultToolkitInit(cfg)
	if MuPDFAvailable {
		assert.NoError(t, err)
		assert.NotNil(t, fonts)
	} else {
		assert.Error(t, err)
	}
}

func TestMailboxOrderAndClose(t *testing.T) {
	m := NewMailbox()
	for i := 0; i < 1000; i++ {
		m.Post(Event{Kind: EventPageDone, Value: i})
	}
	m.Close()
	m.Post(Event{Kind: EventPageDone, Value: -1})

	var got []int
	for e := range m.Events() {
		got = append(got, e.Value)
	}
	require.Len(t, got, 1000)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestMailboxInterleaved(t *testing.T) {
	m := NewMailbox()
	go func() {
		m.Post(Event{Kind: EventTotalPages, Value: 3})
		for i := 0; i <= 3; i++ {
			m.Post(Event{Kind: EventPageDone, Value: i})
			time.Sleep(time.Millisecond)
		}
		m.Close()
	}()

	var got []Event
	for e := range m.Events() {
		got = append(got, e)
	}
	assert.Equal(t, []Event{
		{Kind: EventTotalPages, Value: 3},
		{Kind: EventPageDone, Value: 0},
		{Kind: EventPageDone, Value: 1},
		{Kind: EventPageDone, Value: 2},
		{Kind: EventPageDone, Value: 3},
	}, got)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "totalPages", EventTotalPages.String())
	assert.Equal(t, "pageDone", EventPageDone.String())
}

func TestLoadFonts(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "mono.ttf")
	require.NoError(t, os.WriteFile(good, gomono.TTF, 0o644))
	bad := filepath.Join(dir, "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o644))

	fonts, err := LoadFonts([]string{good})
	require.NoError(t, err)
	assert.NotNil(t, fonts)

	_, err = LoadFonts([]string{good, bad})
	assert.ErrorContains(t, err, "bad.ttf")
	_, err = LoadFonts([]string{filepath.Join(dir, "missing.ttf")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestServiceFontFiles(t *testing.T) {
	cfg := testConfig()
	cfg.FontFiles = []string{filepath.Join(t.TempDir(), "missing.ttf")}
	fonts, err := defaultToolkitInit(cfg)
	assert.Nil(t, fonts)
	assert.Error(t, err)

	s, err := NewService(cfg)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.IsReady())
}
