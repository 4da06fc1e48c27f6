package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/internal/ctxkeys"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/internal/telemetry"
	"github.com/BaSui01/agentswarm/llm"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Agent pairs a model with a system prompt, tools and a conversation.
// Invocations on one Agent are serialized.
type Agent struct {
	config       Config
	provider     llm.Provider
	registry     llmtools.ToolRegistry
	executor     llmtools.ToolExecutor
	allowed      map[string]struct{}
	sanitize     func(string) string
	conversation ConversationManager
	sessions     session.Manager
	collector    *metrics.Collector
	logger       *zap.Logger

	pendingTools []llmtools.Tool

	// invokeMu serializes Invoke and StructuredOutput.
	invokeMu sync.Mutex

	mu       sync.RWMutex
	messages []types.Message
	restored bool
	stats    *EventLoopMetrics
}

// New builds an agent. Tools given through WithTools are registered here,
// so a duplicate tool name is reported as an error.
func New(provider llm.Provider, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, ErrProviderNotSet
	}
	a := &Agent{
		provider: provider,
		stats:    newEventLoopMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.config.Name == "" {
		a.config.Name = "agent"
	}
	if a.config.MaxCycles <= 0 {
		a.config.MaxCycles = DefaultMaxCycles
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.With(zap.String("agent", a.config.Name))
	if a.conversation == nil {
		a.conversation = NewSlidingWindowManager(DefaultWindowSize)
	}
	if a.registry == nil {
		a.registry = llmtools.NewDefaultRegistry(a.logger)
	}
	a.executor = llmtools.NewDefaultExecutor(a.registry, a.logger)

	for _, t := range a.pendingTools {
		if err := a.AddTool(t); err != nil {
			return nil, err
		}
	}
	a.pendingTools = nil
	return a, nil
}

// MustNew is New for static setups; it panics on error.
func MustNew(provider llm.Provider, opts ...Option) *Agent {
	a, err := New(provider, opts...)
	if err != nil {
		panic(fmt.Sprintf("agent: %v", err))
	}
	return a
}

// AddTool registers t, applying the agent tool timeout when t has none.
func (a *Agent) AddTool(t llmtools.Tool) error {
	if t.Metadata.Timeout == 0 && a.config.ToolTimeout > 0 {
		t = t.WithTimeout(a.config.ToolTimeout)
	}
	if err := t.Register(a.registry); err != nil {
		return fmt.Errorf("agent %s: register tool %s: %w", a.config.Name, t.Name(), err)
	}
	return nil
}

func (a *Agent) Name() string { return a.config.Name }

func (a *Agent) Description() string { return a.config.Description }

func (a *Agent) SystemPrompt() string { return a.config.SystemPrompt }

func (a *Agent) Config() Config { return a.config }

func (a *Agent) Provider() llm.Provider { return a.provider }

func (a *Agent) Registry() llmtools.ToolRegistry { return a.registry }

// Tools lists the schemas the model can call, sorted by name.
func (a *Agent) Tools() []llm.ToolSchema {
	all := a.registry.List()
	if a.allowed == nil {
		return all
	}
	out := make([]llm.ToolSchema, 0, len(all))
	for _, s := range all {
		if a.toolAllowed(s.Name) {
			out = append(out, s)
		}
	}
	return out
}

func (a *Agent) toolAllowed(name string) bool {
	if a.allowed == nil {
		return true
	}
	_, ok := a.allowed[name]
	return ok
}

// Messages returns a copy of the current conversation.
func (a *Agent) Messages() []types.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]types.Message(nil), a.messages...)
}

// ResetConversation clears in-memory history. Persisted sessions are kept.
func (a *Agent) ResetConversation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = nil
	a.restored = true
}

// Metrics returns a snapshot of metrics accumulated across invocations.
func (a *Agent) Metrics() EventLoopMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats.clone()
}

// Restore loads the persisted conversation. It is a no-op without a session
// manager or after history has been loaded once.
func (a *Agent) Restore(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.restoreLocked(ctx)
}

func (a *Agent) restoreLocked(ctx context.Context) error {
	if a.restored || a.sessions == nil || a.config.SessionID == "" {
		return nil
	}
	msgs, err := a.sessions.Load(ctx, a.config.SessionID, a.config.Name)
	if err != nil {
		return fmt.Errorf("restore session %s: %w", a.config.SessionID, err)
	}
	a.messages = a.conversation.Apply(msgs)
	a.restored = true
	a.logger.Debug("conversation restored",
		zap.String("session_id", a.config.SessionID),
		zap.Int("stored", len(msgs)),
		zap.Int("kept", len(a.messages)))
	return nil
}

// appendMessage adds msg to the conversation and persists it.
func (a *Agent) appendMessage(ctx context.Context, msg types.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.mu.Unlock()

	if a.sessions != nil && a.config.SessionID != "" {
		if err := a.sessions.Append(ctx, a.config.SessionID, a.config.Name, msg); err != nil {
			return fmt.Errorf("persist message: %w", err)
		}
	}
	return nil
}

// applyWindow trims in-memory history through the conversation manager.
func (a *Agent) applyWindow() {
	a.mu.Lock()
	a.messages = a.conversation.Apply(a.messages)
	a.mu.Unlock()
}

func (a *Agent) buildRequest(withTools bool) *llm.ChatRequest {
	req := &llm.ChatRequest{
		Model:        a.config.Model,
		SystemPrompt: a.config.SystemPrompt,
		Messages:     a.Messages(),
		MaxTokens:    a.config.MaxTokens,
		Temperature:  a.config.Temperature,
	}
	if withTools {
		req.Tools = a.Tools()
	}
	return req
}

// Invoke sends prompt as a user message and runs the event loop until the
// model answers without calling tools.
func (a *Agent) Invoke(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	a.invokeMu.Lock()
	defer a.invokeMu.Unlock()

	start := time.Now()
	ctx = ctxkeys.WithAgentName(ctx, a.config.Name)
	ctx, span := telemetry.StartSpan(ctx, "agent.invoke", attribute.String("agent.name", a.config.Name))
	defer span.End()

	fields := []zap.Field{zap.Int("prompt_len", len(prompt))}
	if runID, ok := ctxkeys.RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", runID))
		span.SetAttributes(attribute.String("run.id", runID))
	}
	a.logger.Info("invoking agent", fields...)

	result, err := a.invoke(ctx, prompt)
	duration := time.Since(start)

	status := "success"
	cycles := 0
	if result != nil {
		cycles = result.Cycles
	}
	if err != nil {
		status = "error"
		telemetry.Fail(span, err)
		a.logger.Error("invocation failed", zap.Error(err), zap.Duration("duration", duration))
	} else {
		span.SetAttributes(
			attribute.String("agent.stop_reason", string(result.StopReason)),
			attribute.Int("agent.cycles", result.Cycles),
			attribute.Int("agent.total_tokens", result.Usage.TotalTokens),
		)
		a.logger.Info("invocation completed",
			zap.String("stop_reason", string(result.StopReason)),
			zap.Int("cycles", result.Cycles),
			zap.Int("total_tokens", result.Usage.TotalTokens),
			zap.Duration("duration", duration))
	}
	a.collector.RecordAgentInvocation(a.config.Name, status, duration, cycles)
	return result, err
}

func (a *Agent) invoke(ctx context.Context, prompt string) (*Result, error) {
	a.mu.Lock()
	err := a.restoreLocked(ctx)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := a.appendMessage(ctx, types.NewUserMessage(prompt)); err != nil {
		return nil, err
	}
	return a.eventLoop(ctx)
}

// eventLoop alternates model calls and tool execution.
func (a *Agent) eventLoop(ctx context.Context) (*Result, error) {
	var stop atomic.Bool
	ctx = ctxkeys.WithStopFlag(ctx, &stop)

	var usage types.TokenUsage
	for cycle := 1; cycle <= a.config.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cycleStart := time.Now()
		a.applyWindow()

		resp, err := a.callModel(ctx, a.buildRequest(true))
		if err != nil {
			return nil, fmt.Errorf("model call failed in cycle %d: %w", cycle, err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyResponse
		}
		cycleUsage := resp.Usage.TokenUsage()
		usage.Add(cycleUsage)

		msg := resp.FirstMessage()
		msg.Role = types.RoleAssistant
		if a.sanitize != nil && msg.Content != "" {
			msg.Content = a.sanitize(msg.Content)
		}
		if err := a.appendMessage(ctx, msg); err != nil {
			return nil, err
		}

		if !msg.HasToolCalls() {
			a.recordCycle(time.Since(cycleStart), cycleUsage)
			return a.result(msg, stopReasonFor(resp.FinishReason()), cycle, usage), nil
		}

		for _, res := range a.executeTools(ctx, msg.ToolCalls) {
			out := res.ToMessage()
			if a.sanitize != nil && !res.IsError() {
				out.Content = a.sanitize(out.Content)
			}
			if err := a.appendMessage(ctx, out); err != nil {
				return nil, err
			}
		}
		a.recordCycle(time.Since(cycleStart), cycleUsage)

		if stop.Load() {
			a.logger.Debug("stop requested by tool", zap.Int("cycle", cycle))
			return a.result(msg, StopReasonStopRequested, cycle, usage), nil
		}
	}

	a.logger.Warn("max cycles reached", zap.Int("max_cycles", a.config.MaxCycles))
	return nil, fmt.Errorf("%w (%d)", ErrMaxCyclesExceeded, a.config.MaxCycles)
}

func (a *Agent) callModel(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := a.provider.Completion(ctx, req)
	status := "success"
	var in, out int
	if err != nil {
		status = "error"
	} else {
		in, out = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	a.collector.RecordLLMRequest(a.provider.Name(), req.Model, status, time.Since(start), in, out)
	return resp, err
}

// executeTools runs calls concurrently. Calls outside the allowlist fail
// without reaching the registry.
func (a *Agent) executeTools(ctx context.Context, calls []types.ToolCall) []llmtools.ToolResult {
	ctx, span := telemetry.StartSpan(ctx, "agent.tools", attribute.Int("tool.count", len(calls)))
	defer span.End()

	results := make([]llmtools.ToolResult, len(calls))
	allowed := make([]types.ToolCall, 0, len(calls))
	idx := make([]int, 0, len(calls))
	for i, c := range calls {
		if !a.toolAllowed(c.Name) {
			results[i] = llmtools.ToolResult{
				ToolCallID: c.ID,
				Name:       c.Name,
				Error:      fmt.Sprintf("tool %s is not allowed for agent %s", c.Name, a.config.Name),
			}
			continue
		}
		allowed = append(allowed, c)
		idx = append(idx, i)
	}
	if len(allowed) > 0 {
		for j, r := range a.executor.Execute(ctx, allowed) {
			results[idx[j]] = r
		}
	}

	a.mu.Lock()
	for i, r := range results {
		a.stats.recordTool(r, calls[i].Arguments)
	}
	a.mu.Unlock()
	for _, r := range results {
		a.collector.RecordToolCall(r.Name, !r.IsError(), r.Duration)
		if r.IsError() {
			a.logger.Warn("tool call failed", zap.String("tool", r.Name), zap.String("error", r.Error))
		}
	}
	return results
}

func (a *Agent) recordCycle(d time.Duration, usage types.TokenUsage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.recordCycle(d, usage)
}

func (a *Agent) result(msg types.Message, reason StopReason, cycles int, usage types.TokenUsage) *Result {
	return &Result{
		Message:    msg,
		StopReason: reason,
		Cycles:     cycles,
		Usage:      usage,
		Metrics:    a.Metrics(),
	}
}

// RequestStop asks the event loop running the current tool call to finish
// after this cycle. It reports false outside an agent invocation.
func RequestStop(ctx context.Context) bool {
	flag, ok := ctxkeys.StopFlag(ctx)
	if !ok {
		return false
	}
	flag.Store(true)
	return true
}

// CurrentAgent returns the name of the agent whose tool call is running.
func CurrentAgent(ctx context.Context) (string, bool) {
	return ctxkeys.AgentName(ctx)
}
