// utils/logger.go - Structured logging
package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It is a no-op until InitLogger runs so
// packages and tests can log unconditionally.
var Logger = zap.NewNop()

// InitLogger builds the production logger at the given level
func InitLogger(logLevel string, development bool) {
	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	config.Level.SetLevel(level)
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		Logger.Warn("falling back to no-op logger", zap.Error(err))
		return
	}
	Logger = logger
}
