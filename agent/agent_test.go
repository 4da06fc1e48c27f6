package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/llm"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/testutil"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/BaSui01/agentswarm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addArgs struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func addTool() llmtools.Tool {
	return llmtools.MustFunctionTool("add", "Add two integers", func(_ context.Context, a addArgs) (any, error) {
		return a.X + a.Y, nil
	})
}

func TestNew(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrProviderNotSet)
	})

	t.Run("defaults", func(t *testing.T) {
		a, err := New(mocks.NewMockProvider())
		require.NoError(t, err)
		assert.Equal(t, "agent", a.Name())
		assert.Equal(t, DefaultMaxCycles, a.Config().MaxCycles)
		assert.Empty(t, a.Tools())
	})

	t.Run("duplicate tool", func(t *testing.T) {
		_, err := New(mocks.NewMockProvider(), WithTools(addTool(), addTool()))
		require.Error(t, err)
		assert.ErrorIs(t, err, llmtools.ErrToolExists)
	})

	t.Run("tool timeout applied", func(t *testing.T) {
		a, err := New(mocks.NewMockProvider(), WithToolTimeout(3*time.Second), WithTools(addTool()))
		require.NoError(t, err)
		_, meta, err := a.Registry().Get("add")
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, meta.Timeout)
	})
}

func TestInvoke_TextReply(t *testing.T) {
	provider := mocks.NewScriptedProvider().QueueText("  Hello there.  ")
	a := MustNew(provider, WithName("greeter"), WithSystemPrompt("Be brief."), WithModel("gemini-2.5-flash"))

	res, err := a.Invoke(testutil.TestContext(t), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", res.String())
	assert.Equal(t, StopReasonEndTurn, res.StopReason)
	assert.Equal(t, 1, res.Cycles)
	assert.Equal(t, 30, res.Usage.TotalTokens)

	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "Be brief.", req.SystemPrompt)
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, types.RoleUser, req.Messages[0].Role)

	msgs := a.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
}

func TestInvoke_Temperature(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want *float32
	}{
		{name: "unset", want: nil},
		{name: "zero", opts: []Option{WithTemperature(0)}, want: ptrFloat32(0)},
		{name: "set", opts: []Option{WithTemperature(0.4)}, want: ptrFloat32(0.4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mocks.NewScriptedProvider().QueueText("ok")
			a := MustNew(provider, tt.opts...)
			_, err := a.Invoke(testutil.TestContext(t), "hi")
			require.NoError(t, err)

			req := provider.LastRequest()
			require.NotNil(t, req)
			assert.Equal(t, tt.want, req.Temperature)
		})
	}
}

func ptrFloat32(v float32) *float32 { return &v }

func TestInvoke_EmptyPrompt(t *testing.T) {
	a := MustNew(mocks.NewMockProvider())
	_, err := a.Invoke(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestInvoke_ToolLoop(t *testing.T) {
	provider := mocks.NewScriptedProvider().
		QueueToolCall("add", `{"x":2,"y":3}`).
		QueueText("The sum is 5.")
	a := MustNew(provider, WithTools(addTool()))

	res, err := a.Invoke(testutil.TestContext(t), "what is 2+3?")
	require.NoError(t, err)
	assert.Equal(t, "The sum is 5.", res.String())
	assert.Equal(t, 2, res.Cycles)
	assert.Equal(t, 60, res.Usage.TotalTokens)

	calls := provider.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[0].Request.Tools, 1)
	assert.Equal(t, "add", calls[0].Request.Tools[0].Name)

	second := calls[1].Request.Messages
	require.Len(t, second, 3)
	assert.Equal(t, types.RoleTool, second[2].Role)
	assert.Equal(t, "call_1", second[2].ToolCallID)
	assert.Equal(t, "5", second[2].Content)

	tm := res.Metrics.ToolMetrics["add"]
	assert.Equal(t, 1, tm.CallCount)
	assert.Equal(t, 1, tm.SuccessCount)
	assert.JSONEq(t, `{"x":2,"y":3}`, string(tm.LastInput))
	assert.Equal(t, 2, res.Metrics.CycleCount)
}

func TestInvoke_ToolErrorsReturnedToModel(t *testing.T) {
	failing := mocks.NewMockTool("lookup").WithError(errors.New("backend down"))
	provider := mocks.NewScriptedProvider().
		QueueToolCall("lookup", `{}`).
		QueueToolCall("missing", `{}`).
		QueueText("Sorry, I could not look that up.")
	a := MustNew(provider, WithTools(failing.Tool()))

	res, err := a.Invoke(testutil.TestContext(t), "look it up")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Cycles)
	assert.Equal(t, 1, failing.CallCount())

	msgs := a.Messages()
	var toolMsgs []types.Message
	for _, m := range msgs {
		if m.Role == types.RoleTool {
			toolMsgs = append(toolMsgs, m)
		}
	}
	require.Len(t, toolMsgs, 2)
	assert.True(t, toolMsgs[0].IsError)
	assert.Contains(t, toolMsgs[0].Content, "backend down")
	assert.Contains(t, toolMsgs[1].Content, "tool not found")
	assert.Equal(t, 1, res.Metrics.ToolMetrics["lookup"].ErrorCount)
}

func TestInvoke_MaxCycles(t *testing.T) {
	provider := mocks.NewScriptedProvider().
		QueueToolCall("add", `{"x":1,"y":1}`).
		QueueToolCall("add", `{"x":1,"y":1}`).
		QueueText("never reached")
	a := MustNew(provider, WithTools(addTool()), WithMaxCycles(2))

	_, err := a.Invoke(testutil.TestContext(t), "loop")
	assert.ErrorIs(t, err, ErrMaxCyclesExceeded)
	assert.Equal(t, 2, provider.CallCount())
}

func TestInvoke_ProviderError(t *testing.T) {
	upstream := llm.NewError(types.ErrUpstreamError, "gateway exploded", "mock")
	provider := mocks.NewScriptedProvider().QueueError(upstream)
	a := MustNew(provider)

	_, err := a.Invoke(testutil.TestContext(t), "hello")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.Contains(t, err.Error(), "cycle 1")
}

func TestInvoke_ContextCancelled(t *testing.T) {
	a := MustNew(mocks.NewMockProvider())
	_, err := a.Invoke(testutil.CancelledContext(), "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoke_ToolAllowlist(t *testing.T) {
	registry := llmtools.NewDefaultRegistry(nil)
	secret := mocks.NewMockTool("delete_everything")
	require.NoError(t, secret.Tool().Register(registry))

	provider := mocks.NewScriptedProvider().
		QueueToolCall("delete_everything", `{}`).
		QueueText("done")
	a := MustNew(provider, WithName("order_lookup"), WithRegistry(registry),
		WithTools(addTool()), WithToolAllowlist("add"))

	names := make([]string, 0)
	for _, s := range a.Tools() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"add"}, names)

	_, err := a.Invoke(testutil.TestContext(t), "clean up")
	require.NoError(t, err)
	assert.Zero(t, secret.CallCount())

	msgs := a.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Error: tool delete_everything is not allowed for agent order_lookup", msgs[2].Content)
}

func TestInvoke_OutputSanitizer(t *testing.T) {
	lookup := mocks.NewMockTool("lookup").WithResult(`{"email":"secret@example.com"}`)
	provider := mocks.NewScriptedProvider().
		QueueToolCall("lookup", `{}`).
		QueueText("Contact secret@example.com")
	redact := func(s string) string {
		return strings.ReplaceAll(s, "secret@example.com", "[redacted]")
	}
	a := MustNew(provider, WithTools(lookup.Tool()), WithOutputSanitizer(redact))

	res, err := a.Invoke(testutil.TestContext(t), "who?")
	require.NoError(t, err)
	assert.Equal(t, "Contact [redacted]", res.String())

	msgs := a.Messages()
	assert.JSONEq(t, `{"email":"[redacted]"}`, msgs[2].Content)
}

func TestInvoke_RequestStop(t *testing.T) {
	var seenAgent string
	stopper := mocks.NewMockTool("finish").WithFunc(func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		seenAgent, _ = CurrentAgent(ctx)
		if !RequestStop(ctx) {
			return nil, errors.New("not inside an agent")
		}
		return json.RawMessage(`"stopping"`), nil
	})
	provider := mocks.NewScriptedProvider().
		QueueToolCall("finish", `{}`).
		QueueText("unreachable")
	a := MustNew(provider, WithName("worker"), WithTools(stopper.Tool()))

	res, err := a.Invoke(testutil.TestContext(t), "go")
	require.NoError(t, err)
	assert.Equal(t, StopReasonStopRequested, res.StopReason)
	assert.Equal(t, "worker", seenAgent)
	assert.Equal(t, 1, provider.CallCount())
	assert.Equal(t, 1, provider.Pending())

	assert.False(t, RequestStop(context.Background()))
}

func TestInvoke_StopReasons(t *testing.T) {
	tests := []struct {
		finish string
		want   StopReason
	}{
		{llm.FinishReasonStop, StopReasonEndTurn},
		{llm.FinishReasonLength, StopReasonMaxTokens},
		{llm.FinishReasonContentFilter, StopReasonContentFiltered},
	}
	for _, tt := range tests {
		t.Run(tt.finish, func(t *testing.T) {
			resp := mocks.TextResponse("partial")
			resp.Choices[0].FinishReason = tt.finish
			a := MustNew(mocks.NewScriptedProvider().QueueResponse(resp))
			res, err := a.Invoke(testutil.TestContext(t), "hi")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.StopReason)
		})
	}
}

func TestInvoke_EmptyResponse(t *testing.T) {
	a := MustNew(mocks.NewScriptedProvider().QueueResponse(&llm.ChatResponse{}))
	_, err := a.Invoke(testutil.TestContext(t), "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInvoke_Serialized(t *testing.T) {
	var inflight, peak atomic.Int32
	provider := mocks.NewScriptedProvider().WithCompletionFunc(func(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return mocks.TextResponse("ok"), nil
	})
	a := MustNew(provider)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Invoke(context.Background(), "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
	assert.Len(t, a.Messages(), 10)
	assert.Equal(t, 5, a.Metrics().CycleCount)
}

func TestInvoke_SessionRestore(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := session.NewMemoryManager()

	first := MustNew(mocks.NewScriptedProvider().QueueText("Nice to meet you, Ada."),
		WithName("assistant"), WithSession(store, "s1"))
	_, err := first.Invoke(ctx, "My name is Ada.")
	require.NoError(t, err)

	stored, err := store.Load(ctx, "s1", "assistant")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	provider := mocks.NewScriptedProvider().QueueText("Your name is Ada.")
	second := MustNew(provider, WithName("assistant"), WithSession(store, "s1"))
	require.NoError(t, second.Restore(ctx))
	assert.Len(t, second.Messages(), 2)

	res, err := second.Invoke(ctx, "What is my name?")
	require.NoError(t, err)
	assert.Equal(t, "Your name is Ada.", res.String())
	assert.Len(t, provider.LastRequest().Messages, 3)

	stored, err = store.Load(ctx, "s1", "assistant")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestResetConversation(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := session.NewMemoryManager()
	a := MustNew(mocks.NewMockProvider(), WithSession(store, "s2"))

	_, err := a.Invoke(ctx, "hello")
	require.NoError(t, err)
	a.ResetConversation()
	assert.Empty(t, a.Messages())

	stored, err := store.Load(ctx, "s2", "agent")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEventLoopMetrics_Summary(t *testing.T) {
	provider := mocks.NewScriptedProvider().
		QueueToolCall("add", `{"x":1,"y":2}`).
		QueueText("3")
	a := MustNew(provider, WithTools(addTool()))
	res, err := a.Invoke(testutil.TestContext(t), "1+2")
	require.NoError(t, err)

	summary := res.Metrics.Summary()
	assert.Equal(t, 2, summary["total_cycles"])
	assert.Contains(t, summary, "total_duration")
	assert.Contains(t, summary, "average_cycle_time")
	assert.Equal(t, 60, summary["accumulated_usage"].(types.TokenUsage).TotalTokens)

	usage := summary["tool_usage"].(map[string]any)["add"].(map[string]any)
	stats := usage["execution_stats"].(map[string]any)
	assert.Equal(t, 1, stats["call_count"])
	assert.Equal(t, 1.0, stats["success_rate"])
	info := usage["tool_info"].(map[string]any)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0}, info["input_params"])
}

func TestToolMetrics_Rates(t *testing.T) {
	assert.Zero(t, ToolMetrics{}.SuccessRate())
	assert.Zero(t, ToolMetrics{}.AverageTime())

	tm := ToolMetrics{CallCount: 4, SuccessCount: 3, TotalTime: 400 * time.Millisecond}
	assert.InDelta(t, 0.75, tm.SuccessRate(), 1e-9)
	assert.Equal(t, 100*time.Millisecond, tm.AverageTime())
}
