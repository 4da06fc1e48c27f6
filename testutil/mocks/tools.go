package mocks

import (
	"context"
	"encoding/json"
	"sync"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

// RecordedCall is one invocation of a MockTool.
type RecordedCall struct {
	Args json.RawMessage
}

// MockTool is a tool returning a fixed result or error and recording calls.
type MockTool struct {
	mu     sync.Mutex
	name   string
	result json.RawMessage
	err    error
	fn     llmtools.ToolFunc
	calls  []RecordedCall
}

// NewMockTool returns a tool answering {"ok":true}.
func NewMockTool(name string) *MockTool {
	return &MockTool{name: name, result: json.RawMessage(`{"ok":true}`)}
}

// WithResult sets the returned JSON.
func (m *MockTool) WithResult(result string) *MockTool {
	m.result = json.RawMessage(result)
	return m
}

// WithError makes every call fail.
func (m *MockTool) WithError(err error) *MockTool {
	m.err = err
	return m
}

// WithFunc replaces the canned behaviour.
func (m *MockTool) WithFunc(fn llmtools.ToolFunc) *MockTool {
	m.fn = fn
	return m
}

// Tool returns the registrable tool.
func (m *MockTool) Tool() llmtools.Tool {
	return llmtools.NewTool(m.name, "Mock tool: "+m.name, nil, m.call)
}

func (m *MockTool) call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RecordedCall{Args: append(json.RawMessage(nil), args...)})
	fn, result, err := m.fn, m.result, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, args)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Calls returns the recorded calls.
func (m *MockTool) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedCall(nil), m.calls...)
}

func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
