package ctxkeys

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringKeys(t *testing.T) {
	ctx := context.Background()
	_, ok := RunID(ctx)
	assert.False(t, ok)

	ctx = WithRunID(ctx, "r1")
	ctx = WithAgentName(ctx, "dispatcher")
	ctx = WithUserID(ctx, "")

	v, ok := RunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "r1", v)
	v, _ = AgentName(ctx)
	assert.Equal(t, "dispatcher", v)
	_, ok = UserID(ctx)
	assert.False(t, ok, "empty values are treated as absent")
}

func TestStopFlag(t *testing.T) {
	_, ok := StopFlag(context.Background())
	assert.False(t, ok)

	var flag atomic.Bool
	ctx := WithStopFlag(context.Background(), &flag)
	got, ok := StopFlag(ctx)
	assert.True(t, ok)
	got.Store(true)
	assert.True(t, flag.Load())
}
