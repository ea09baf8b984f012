package flatten

import (
	"fmt"
	"log/slog"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

// DefaultResourceName is the XObject name the page raster is registered
// under.
const DefaultResourceName = "ImageContent"

// Rasterizer backends.
const (
	BackendNative = "native"
	BackendMuPDF  = "mupdf"
)

// Config controls a pipeline.
type Config struct {
	// Scale is the number of raster pixels per PDF unit.
	Scale float64
	// ResourceName is the preferred XObject name; on collision a numeric
	// suffix is appended.
	ResourceName string
	// Backend selects the rasterizer: BackendNative or BackendMuPDF.
	Backend string
	// Compress Flate-encodes unfiltered streams on save.
	Compress bool
	// Fonts overrides the fallback faces of the native backend.
	Fonts *pdf.FontSet
	// FontFiles are TrueType files added to the fallback faces, searched
	// for characters the built-in faces lack. Ignored when Fonts is set.
	FontFiles []string
	// Lenient flattens pages the native backend cannot draw completely
	// instead of failing them with a page render error.
	Lenient bool

	Logger *slog.Logger
}

// DefaultConfig returns the configuration used for duplex flattening.
func DefaultConfig() Config {
	return Config{
		Scale:        pdf.DefaultScale,
		ResourceName: DefaultResourceName,
		Backend:      BackendNative,
		Compress:     true,
	}
}

func (c Config) withDefaults() Config {
	if c.Scale <= 0 {
		c.Scale = pdf.DefaultScale
	}
	if c.ResourceName == "" {
		c.ResourceName = DefaultResourceName
	}
	if c.Backend == "" {
		c.Backend = BackendNative
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch c.Backend {
	case BackendNative, BackendMuPDF:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Scale > 16 {
		return fmt.Errorf("scale %g out of range", c.Scale)
	}
	for _, r := range c.ResourceName {
		if r <= ' ' || r > '~' || r == '/' || r == '#' || r == '%' ||
			r == '(' || r == ')' || r == '<' || r == '>' || r == '[' || r == ']' || r == '{' || r == '}' {
			return fmt.Errorf("resource name %q must consist of regular ASCII characters", c.ResourceName)
		}
	}
	return nil
}
