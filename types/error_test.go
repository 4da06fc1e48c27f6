package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("gemini")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
	assert.Contains(t, err.Error(), "root")
}

func TestError_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrRateLimited, "slow down").WithRetryable(true)
	wrapped := fmt.Errorf("calling model: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "slow down", e.Message)
	assert.True(t, IsRetryable(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrRateLimited))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrRateLimited))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
}

func TestToolResult_ToMessage(t *testing.T) {
	t.Parallel()

	ok := ToolResult{ToolCallID: "c1", Name: "uppercase", Result: []byte(`"HELLO"`)}
	msg := ok.ToMessage()
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "HELLO", msg.Content)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.False(t, msg.IsError)

	obj := ToolResult{Name: "calc", Result: []byte(`{"value":4}`)}
	assert.Equal(t, `{"value":4}`, obj.Text())

	failed := ToolResult{ToolCallID: "c2", Name: "divide", Error: "Cannot divide by zero"}
	msg = failed.ToMessage()
	assert.True(t, msg.IsError)
	assert.Equal(t, "Error: Cannot divide by zero", msg.Content)
}

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	var u TokenUsage
	u.Add(TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	u.Add(TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3})
	assert.Equal(t, TokenUsage{InputTokens: 11, OutputTokens: 7, TotalTokens: 18}, u)
}

func TestMessage_WithMetadataCopies(t *testing.T) {
	t.Parallel()

	base := NewUserMessage("hi").WithMetadata("a", "1")
	derived := base.WithMetadata("b", "2")
	assert.Len(t, base.Metadata, 1)
	assert.Len(t, derived.Metadata, 2)
	assert.False(t, base.HasToolCalls())
}
