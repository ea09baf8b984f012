package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", false)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown", "page", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "page=2")

	buf.Reset()
	log, err = New(&buf, "DEBUG", true)
	require.NoError(t, err)
	log.Debug("event", "pages", 3)
	assert.Contains(t, buf.String(), `"pages":3`)

	_, err = New(&buf, "loud", false)
	assert.Error(t, err)
}
