package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestNewLogger_Background verifies background contexts log to the data directory
func TestNewLogger_Background(t *testing.T) {
	cfg := DefaultFor(filepath.Join(t.TempDir(), "data"))

	logger := NewLogger(cfg, true)
	logger.Info("monitor started")
	_ = logger.Sync()

	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "monitor started")
	assert.Contains(t, string(raw), `"time"`)
}

// TestNewLogger_Interactive verifies interactive commands stay quiet below warn
func TestNewLogger_Interactive(t *testing.T) {
	cfg := DefaultFor(t.TempDir())
	cfg.Log.Level = "debug"

	logger := NewLogger(cfg, false)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_Level(t *testing.T) {
	cfg := DefaultFor(t.TempDir())
	cfg.Log.Level = "error"

	logger := NewLogger(cfg, true)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
