// Package logger builds the service zap logger.
//
// Debug and info entries go to stdout, warnings and errors to stderr. When a log file is
// configured every enabled entry is also written to a size-rotated JSON file.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nvr-ai/go-classify/config"
)

// New returns a logger with a tee core over stdout, stderr and the optional log file.
//
// Arguments:
//   - cfg: The log file settings. An empty File disables the file core.
//   - debug: Enables debug entries and the development encoder.
//
// Returns:
//   - *zap.Logger: The logger.
//   - io.Closer: Closes the log file. It is a no-op when no file is configured.
func New(cfg config.LogConfig, debug bool) (*zap.Logger, io.Closer) {
	return newWithSyncers(cfg, debug, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

func newWithSyncers(cfg config.LogConfig, debug bool, stdout, stderr zapcore.WriteSyncer) (*zap.Logger, io.Closer) {
	// debug and info level enabler
	lowLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		if debug {
			return level == zapcore.DebugLevel || level == zapcore.InfoLevel
		}
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	highLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stdout, lowLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stderr, highLevel),
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   cfg.Compress,
		}
		fileLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return lowLevel(level) || highLevel(level)
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			fileLevel,
		))
		closer = rotator
	}

	return zap.New(zapcore.NewTee(cores...)), closer
}

// WithSpan returns a logger that also records every entry as an event on the span in ctx.
// Entries at error level or above mark the span as failed.
func WithSpan(ctx context.Context, logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.Hooks(func(entry zapcore.Entry) error {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return nil
		}

		span.AddEvent("log", trace.WithAttributes(
			attribute.String("log.severity", entry.Level.String()),
			attribute.String("log.message", entry.Message),
		))
		if entry.Level >= zap.ErrorLevel {
			span.SetStatus(codes.Error, entry.Message)
		}
		return nil
	}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
