// Package halctx carries command-line session settings through a context.
package halctx

import (
	"context"
	"log/slog"
)

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexLogger
	ctxIndexAssumeYes
)

func IsVerbose(ctx context.Context) bool {
	val, _ := ctx.Value(ctxIndexVerbose).(bool)
	return val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Logger returns the logger stored in ctx or slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxIndexLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxIndexLogger, l)
}

// AssumeYes reports whether confirmation prompts should be skipped.
func AssumeYes(ctx context.Context) bool {
	val, _ := ctx.Value(ctxIndexAssumeYes).(bool)
	return val
}

func SetAssumeYes(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexAssumeYes, value)
}
