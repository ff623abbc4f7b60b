package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragchat.log")

	logger, err := New(Options{File: path})
	require.NoError(t, err)

	logger.Info("session created")
	logger.Debug("dropped at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"message":"session created"`)
	assert.Contains(t, out, `"level":"INFO"`)
	assert.False(t, strings.Contains(out, "dropped at info level"))
}

func TestNew_NoOutputsIsNop(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	logger.Info("nowhere")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
