package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger returns the current default logger instance.
func Logger() *slog.Logger {
	return slog.Default()
}

// Setup installs a text handler at the given level as the slog default.
func Setup(level string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// ParseLevel converts a configured level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", level)
	}
}

// WithContext returns a logger that includes the log fields stored in ctx.
func WithContext(ctx context.Context) *slog.Logger {
	logger := Logger()
	if ctx == nil {
		return logger
	}
	for k, v := range GetFields(ctx) {
		logger = logger.With(k, v)
	}
	return logger
}

// Info logs at Info level with fields from context.
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Error logs at Error level with fields from context.
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

// Warn logs at Warn level with fields from context.
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Debug logs at Debug level with fields from context.
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}
