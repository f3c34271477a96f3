// Package logging sets up the structured logr loggers used across signalflow
package logging

import (
	"context"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logger.V
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// Options configures NewLogger
type Options struct {
	// Verbosity enables logger.V(n) for every n <= Verbosity
	Verbosity int
	// Development switches to the console encoder with stack traces on warnings
	Development bool
}

// NewLogger creates a zap-backed logr.Logger
func NewLogger(opts Options) logr.Logger {
	level := uberzap.NewAtomicLevelAt(zapcore.Level(-opts.Verbosity))

	var cfg uberzap.Config
	if opts.Development {
		cfg = uberzap.NewDevelopmentConfig()
	} else {
		cfg = uberzap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = level

	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		// Build only fails on broken sink configuration; fall back to stderr
		zl = uberzap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(uberzap.NewProductionEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	return zapr.NewLogger(zl)
}

// NewTestLogger creates a development logger with every verbosity enabled
func NewTestLogger() logr.Logger {
	return NewLogger(Options{Verbosity: TRACE, Development: true})
}

// IntoContext stores the logger in ctx
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// FromContext returns the logger stored in ctx, or a discarding logger
func FromContext(ctx context.Context) logr.Logger {
	logger, err := logr.FromContext(ctx)
	if err != nil {
		return logr.Discard()
	}
	return logger
}

// Fatal calls logger.Error followed by os.Exit(1).
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	logger.Error(err, msg, keysAndValues...)
	os.Exit(1)
}
