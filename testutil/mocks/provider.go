// Package mocks provides test doubles for llm.Provider and tools.
package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/types"
)

// ErrNoResponse is returned when the queue is empty and no fallback is set.
var ErrNoResponse = errors.New("mock provider: no scripted response left")

type scripted struct {
	resp *llm.ChatResponse
	err  error
}

// MockProviderCall records one Completion call.
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// MockProvider replays queued responses in order, then falls back to a
// fixed reply.
type MockProvider struct {
	mu sync.Mutex

	name       string
	queue      []scripted
	fallback   *string
	fallbackEr error
	structured bool
	delay      time.Duration
	usage      llm.ChatUsage
	fn         func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls   []MockProviderCall
	toolSeq int
}

// NewMockProvider returns a provider answering "Mock response".
func NewMockProvider() *MockProvider {
	fallback := "Mock response"
	return &MockProvider{
		name:     "mock",
		fallback: &fallback,
		usage:    llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// NewScriptedProvider returns a provider that errors once its queue is empty.
func NewScriptedProvider() *MockProvider {
	m := NewMockProvider()
	m.fallback = nil
	return m
}

func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse sets the fallback reply.
func (m *MockProvider) WithResponse(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &text
	m.fallbackEr = nil
	return m
}

// WithError makes every unscripted call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackEr = err
	return m
}

// WithStructuredOutput toggles native JSON mode support.
func (m *MockProvider) WithStructuredOutput(native bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured = native
	return m
}

func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithTokenUsage sets the usage reported by generated responses.
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = llm.ChatUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return m
}

// WithCompletionFunc delegates unscripted calls to fn.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// QueueText queues plain assistant replies.
func (m *MockProvider) QueueText(texts ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.queue = append(m.queue, scripted{resp: m.textResponse(t)})
	}
	return m
}

// QueueToolCall queues a reply calling one tool; the call id is generated.
func (m *MockProvider) QueueToolCall(name, args string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolSeq++
	call := types.ToolCall{ID: fmt.Sprintf("call_%d", m.toolSeq), Name: name, Arguments: json.RawMessage(args)}
	m.queue = append(m.queue, scripted{resp: m.toolResponse(call)})
	return m
}

// QueueToolCalls queues one reply carrying several tool calls.
func (m *MockProvider) QueueToolCalls(calls ...types.ToolCall) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{resp: m.toolResponse(calls...)})
	return m
}

// QueueError queues a failing call.
func (m *MockProvider) QueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{err: err})
	return m
}

// QueueResponse queues an arbitrary response.
func (m *MockProvider) QueueResponse(resp *llm.ChatResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{resp: resp})
	return m
}

func (m *MockProvider) textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Provider: m.name,
		Model:    "mock-model",
		Usage:    m.usage,
		Choices: []llm.ChatChoice{{
			FinishReason: llm.FinishReasonStop,
			Message:      types.NewAssistantMessage(text),
		}},
	}
}

func (m *MockProvider) toolResponse(calls ...types.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Provider: m.name,
		Model:    "mock-model",
		Usage:    m.usage,
		Choices: []llm.ChatChoice{{
			FinishReason: llm.FinishReasonToolCalls,
			Message:      types.NewAssistantMessage("").WithToolCalls(calls),
		}},
	}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) SupportsNativeFunctionCalling() bool { return true }

func (m *MockProvider) SupportsStructuredOutput() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.structured
}

// Completion pops the next scripted response.
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	snapshot.Tools = append([]llm.ToolSchema(nil), req.Tools...)

	var resp *llm.ChatResponse
	var err error
	switch {
	case len(m.queue) > 0:
		next := m.queue[0]
		m.queue = m.queue[1:]
		resp, err = next.resp, next.err
	case m.fn != nil:
		resp, err = m.fn(ctx, &snapshot)
	case m.fallbackEr != nil:
		err = m.fallbackEr
	case m.fallback != nil:
		resp = m.textResponse(*m.fallback)
	default:
		err = ErrNoResponse
	}
	m.calls = append(m.calls, MockProviderCall{Request: &snapshot, Response: resp, Error: err})
	return resp, err
}

// Calls returns every recorded call.
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Pending reports how many scripted responses are left.
func (m *MockProvider) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Reset clears the queue and the call log.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.calls = nil
	m.toolSeq = 0
}

// TextResponse builds a final assistant response.
func TextResponse(text string) *llm.ChatResponse {
	return NewMockProvider().textResponse(text)
}

// ToolCallResponse builds a response requesting calls.
func ToolCallResponse(calls ...types.ToolCall) *llm.ChatResponse {
	return NewMockProvider().toolResponse(calls...)
}
