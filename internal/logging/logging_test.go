package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriterWritesConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter("info", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("propagation finished", zap.Int("updated", 3))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "propagation finished")
	assert.Contains(t, out, `"updated": 3`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := NewWithWriter("chatty", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
