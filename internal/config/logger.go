package config

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log files written to the data directory by background contexts.
const (
	LogFileName      = "shieldmon.log"
	ErrorLogFileName = "shieldmon.error.log"
)

// NewLogger builds the process logger. Background contexts (daemon, monitor,
// shield-action) log to files in the data directory; interactive commands
// only print warnings and errors to stderr.
func NewLogger(cfg *Config, background bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		level = parsed
	}

	if background {
		if err := os.MkdirAll(cfg.DataDir, 0700); err == nil {
			config.OutputPaths = []string{filepath.Join(cfg.DataDir, LogFileName)}
			config.ErrorOutputPaths = []string{filepath.Join(cfg.DataDir, ErrorLogFileName)}
		}
	} else {
		config.Encoding = "console"
		config.OutputPaths = []string{"stderr"}
		config.ErrorOutputPaths = []string{"stderr"}
		if level < zapcore.WarnLevel {
			level = zapcore.WarnLevel
		}
	}
	config.Level = zap.NewAtomicLevelAt(level)

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
