// Package log configures the application-wide slog logger and allows
// passing a logger around via context.
package log

import (
	"context"
	"log/slog"
	"os"
)

// Debug indicates whether the application runs in debug mode. In debug
// mode the log level is lowered and the portal session stores
// additional artifacts (screenshots, page html) on failures.
var Debug bool

type ctxKey struct{}

// InitializeDefaultLogger sets the default slog logger based on the
// Debug variable.
func InitializeDefaultLogger() {
	level := slog.LevelInfo
	if Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
