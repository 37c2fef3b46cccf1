// Package clog carries the run's *slog.Logger in a context.Context.
package clog

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
)

func Ctx(ctx context.Context) *slog.Logger {
	return slogctx.FromCtx(ctx)
}

func WithCtx(ctx context.Context, logger *slog.Logger) context.Context {
	return slogctx.NewCtx(ctx, logger)
}

func WithAttrs(ctx context.Context, attrs ...any) context.Context {
	return slogctx.With(ctx, attrs...)
}

func NewLoggerFromHandler(ctx context.Context, handler slog.Handler) (*slog.Logger, context.Context) {
	logger := slog.New(slogctx.NewHandler(handler, nil))
	return logger, WithCtx(ctx, logger)
}

// NewTerminalLogger builds a tint handler writing to w and stores the logger
// in ctx. Colors are disabled when noColor is set.
func NewTerminalLogger(ctx context.Context, w io.Writer, level slog.Level, noColor bool) (*slog.Logger, context.Context) {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})
	return NewLoggerFromHandler(ctx, handler)
}
