package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/BaSui01/agentswarm/types"
)

func TestWrapProvider_RetriesRetryableErrors(t *testing.T) {
	inner := mocks.NewScriptedProvider().
		QueueError(types.NewError(types.ErrServiceUnavailable, "overloaded").WithRetryable(true)).
		QueueText("hello")
	p := WrapProvider(inner, fastPolicy(2), nil)

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.FirstMessage().Content)
	assert.Equal(t, 2, inner.CallCount())
}

func TestWrapProvider_StopsOnPermanentError(t *testing.T) {
	inner := mocks.NewScriptedProvider().
		QueueError(types.NewError(types.ErrUnauthorized, "bad key")).
		QueueText("unreachable")
	p := WrapProvider(inner, fastPolicy(3), nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
	assert.Equal(t, 1, inner.CallCount())
}

func TestWrapProvider_Capabilities(t *testing.T) {
	inner := mocks.NewMockProvider().WithName("gemini").WithStructuredOutput(true)

	assert.Same(t, llm.Provider(inner), WrapProvider(inner, Policy{}, nil))

	p := WrapProvider(inner, fastPolicy(1), nil)
	assert.Equal(t, "gemini", p.Name())
	assert.True(t, p.SupportsNativeFunctionCalling())
	so, ok := p.(llm.StructuredOutputProvider)
	require.True(t, ok)
	assert.True(t, so.SupportsStructuredOutput())
	assert.Same(t, llm.Provider(inner), p.(*Provider).Unwrap())
}
