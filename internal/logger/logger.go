// Package logger provides the process-wide logger used by the command
// and API layers. It is a thin facade over zap; packages that want
// structured contextual logging take a *slog.Logger instead.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.Mutex
	log = zap.NewNop().Sugar()
)

// Initialize configures the global logger. Debug mode switches to a
// human-readable console encoder with debug-level output; the default is
// JSON at info level.
func Initialize(debug bool) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap only fails on invalid config; ours is static
		panic(err)
	}

	mu.Lock()
	defer mu.Unlock()
	log = built.Sugar()
}

// Info logs an informational message.
func Info(args ...any) { log.Info(args...) }

// Infof logs a formatted informational message.
func Infof(format string, args ...any) { log.Infof(format, args...) }

// Warn logs a warning message.
func Warn(args ...any) { log.Warn(args...) }

// Warnf logs a formatted warning message.
func Warnf(format string, args ...any) { log.Warnf(format, args...) }

// Error logs an error message.
func Error(args ...any) { log.Error(args...) }

// Errorf logs a formatted error message.
func Errorf(format string, args ...any) { log.Errorf(format, args...) }

// Debugf logs a formatted debug message.
func Debugf(format string, args ...any) { log.Debugf(format, args...) }

// Fatalf logs a formatted message and exits.
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }
