package flatten

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

// Service is the long-lived flattening worker. It initializes the toolkit
// once in the background and then runs one document at a time.
type Service struct {
	cfg      Config
	ready    chan struct{}
	pipeline *Pipeline

	// run is held for the whole of a run.
	run sync.Mutex
}

// toolkitInit prepares the shared rendering state.
type toolkitInit func(Config) (*pdf.FontSet, error)

func defaultToolkitInit(cfg Config) (*pdf.FontSet, error) {
	if cfg.Backend == BackendMuPDF && !MuPDFAvailable {
		return nil, fmt.Errorf("backend %q: not compiled in", cfg.Backend)
	}
	if cfg.Fonts != nil {
		return cfg.Fonts, nil
	}
	if len(cfg.FontFiles) == 0 {
		return pdf.DefaultFontSet()
	}
	return LoadFonts(cfg.FontFiles)
}

// LoadFonts returns the built-in fallback faces extended with the TrueType
// files at paths.
func LoadFonts(paths []string) (*pdf.FontSet, error) {
	fonts, err := pdf.LoadFontSet()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load font: %w", err)
		}
		if err := fonts.AddFace(data); err != nil {
			return nil, fmt.Errorf("load font %s: %w", path, err)
		}
	}
	return fonts, nil
}

// NewService validates cfg and starts initialization. Documents are
// accepted once Ready is closed.
func NewService(cfg Config) (*Service, error) {
	return newService(cfg, defaultToolkitInit)
}

func newService(cfg Config, init toolkitInit) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg.withDefaults(), ready: make(chan struct{})}
	go s.initialize(init)
	return s, nil
}

// initialize runs once. A failure is logged and leaves the service
// unready for good.
func (s *Service) initialize(init toolkitInit) {
	fonts, err := init(s.cfg)
	if err != nil {
		s.cfg.Logger.Error("toolkit initialization failed, no documents will be accepted", "error", err)
		return
	}
	cfg := s.cfg
	cfg.Fonts = fonts
	s.pipeline = &Pipeline{cfg: cfg}
	s.cfg.Logger.Info("flatten service ready", "backend", cfg.Backend, "scale", cfg.Scale)
	close(s.ready)
}

// Ready is closed once the service accepts documents.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports whether Ready is closed.
func (s *Service) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Flatten runs the pipeline on input. It fails with ErrNotReady before
// initialization has completed and with ErrBusy while another document is
// in flight; submissions are never queued.
func (s *Service) Flatten(ctx context.Context, input []byte, observe Observer) (*Result, error) {
	if !s.IsReady() {
		return nil, ErrNotReady
	}
	if !s.run.TryLock() {
		return nil, ErrBusy
	}
	defer s.run.Unlock()
	return s.pipeline.Run(ctx, input, observe)
}
