package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		l, err := NewLogger(level, "json", "")
		require.NoError(t, err, level)
		require.NotNil(t, l)
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("loud", "json", "")
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", "")
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "linkpulse.log")
	l, err := NewLogger("info", "json", path)
	require.NoError(t, err)

	l.Info("hello", zap.String("target", "10.0.0.1"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target":"10.0.0.1"`)
}

func TestInitLogger_SetsGlobal(t *testing.T) {
	prev := L()
	t.Cleanup(func() { SetLogger(prev) })

	l, err := InitLogger("debug", "console", "")
	require.NoError(t, err)
	assert.Same(t, l, L())
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui.log")
	l, err := NewFileLogger("debug", path)
	require.NoError(t, err)

	l.Debug("refresh", zap.Int("targets", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"targets":3`)

	_, err = NewFileLogger("loud", path)
	assert.Error(t, err)
}
