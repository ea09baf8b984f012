package flatten

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// Verify checks a flattened document with an independent PDF reader and
// returns its page count.
func Verify(out []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(out), conf)
	if err != nil {
		return 0, fmt.Errorf("verify: read: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, fmt.Errorf("verify: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("verify: page count: %w", err)
	}
	return ctx.PageCount, nil
}
