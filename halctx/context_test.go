package halctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.False(t, AssumeYes(ctx))
	assert.Equal(t, slog.Default(), Logger(ctx))

	l := slog.New(slog.DiscardHandler)
	ctx = WithLogger(SetAssumeYes(SetVerbose(ctx, true), true), l)
	assert.True(t, IsVerbose(ctx))
	assert.True(t, AssumeYes(ctx))
	assert.Same(t, l, Logger(ctx))
}
