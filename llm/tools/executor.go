package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single tool execution when metadata sets none.
const DefaultTimeout = 30 * time.Second

// ToolFunc defines the tool function signature.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata describes tool metadata.
type ToolMetadata struct {
	Schema      llm.ToolSchema   // Tool JSON Schema
	RateLimit   *RateLimitConfig // Rate limit config (optional)
	Timeout     time.Duration    // Execution timeout (default 30s)
	Description string           // Detailed description
	// Validate checks call arguments against Schema.Parameters before the call.
	Validate bool
}

// RateLimitConfig allows MaxCalls per Window, refilled evenly.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// ToolResult is the outcome of one tool call.
type ToolResult = types.ToolResult

// ToolRegistry defines tool registry interface.
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Unregister(name string) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []llm.ToolSchema
	Has(name string) bool
}

// ToolExecutor defines tool executor interface.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult
}

var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrToolExists      = errors.New("tool already registered")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidToolName = errors.New("invalid tool name")
)

type registeredTool struct {
	fn       ToolFunc
	meta     ToolMetadata
	limiter  *rate.Limiter
	compiled *compiledSchema
}

// DefaultRegistry is a concurrency-safe in-memory ToolRegistry.
type DefaultRegistry struct {
	mu     sync.RWMutex
	tools  map[string]*registeredTool
	logger *zap.Logger
}

// NewDefaultRegistry creates an empty registry.
func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		tools:  make(map[string]*registeredTool),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

func (r *DefaultRegistry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidToolName
	}
	if fn == nil {
		return fmt.Errorf("tool %s: nil function", name)
	}
	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}
	if metadata.Schema.Description == "" {
		metadata.Schema.Description = metadata.Description
	}
	if len(metadata.Schema.Parameters) == 0 {
		metadata.Schema.Parameters = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	if metadata.Timeout <= 0 {
		metadata.Timeout = DefaultTimeout
	}

	entry := &registeredTool{fn: fn, meta: metadata}
	if !json.Valid(metadata.Schema.Parameters) {
		return fmt.Errorf("tool %s: parameters are not valid JSON", name)
	}
	if metadata.Validate {
		compiled, err := compileSchema(name, metadata.Schema.Parameters)
		if err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}
		entry.compiled = compiled
	}
	if rl := metadata.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		entry.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}
	r.tools[name] = entry

	r.logger.Debug("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	delete(r.tools, name)

	r.logger.Debug("tool unregistered", zap.String("name", name))
	return nil
}

func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return entry.fn, entry.meta, nil
}

// List returns the schemas of all tools sorted by name.
func (r *DefaultRegistry) List() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.tools))
	for _, entry := range r.tools {
		schemas = append(schemas, entry.meta.Schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Names returns registered tool names sorted.
func (r *DefaultRegistry) Names() []string {
	schemas := r.List()
	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	return names
}

func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *DefaultRegistry) allow(name string) error {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok || entry.limiter == nil {
		return nil
	}
	if !entry.limiter.Allow() {
		return fmt.Errorf("%w: %s", ErrRateLimited, name)
	}
	return nil
}

func (r *DefaultRegistry) validate(name string, args json.RawMessage) error {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok || entry.compiled == nil {
		return nil
	}
	return entry.compiled.validate(args)
}

// DefaultExecutor runs tool calls from a ToolRegistry.
type DefaultExecutor struct {
	registry ToolRegistry
	logger   *zap.Logger
}

// NewDefaultExecutor creates an executor over registry.
func NewDefaultExecutor(registry ToolRegistry, logger *zap.Logger) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultExecutor{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_executor")),
	}
}

// Execute runs all calls concurrently; results keep the order of calls.
func (e *DefaultExecutor) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}
	fail := func(msg string) ToolResult {
		result.Error = msg
		result.Duration = time.Since(start)
		return result
	}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		e.logger.Warn("tool not found", zap.String("name", call.Name))
		return fail(fmt.Sprintf("tool not found: %s", call.Name))
	}

	reg, isDefault := e.registry.(*DefaultRegistry)
	if isDefault {
		if err := reg.allow(call.Name); err != nil {
			e.logger.Warn("rate limit exceeded", zap.String("name", call.Name))
			return fail(err.Error())
		}
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		e.logger.Warn("invalid tool arguments", zap.String("name", call.Name))
		return fail("invalid arguments: not valid JSON")
	}
	if isDefault {
		if err := reg.validate(call.Name, args); err != nil {
			return fail(fmt.Sprintf("invalid arguments: %s", err.Error()))
		}
	}

	timeout := meta.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res json.RawMessage
		err error
	}
	// Buffered so the goroutine can always exit after a timeout.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				e.logger.Error("tool panicked",
					zap.String("name", call.Name),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()))
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		res, err := fn(execCtx, args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		result.Duration = time.Since(start)
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.Debug("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(out.err),
				zap.Duration("duration", result.Duration))
			return result
		}
		result.Result = out.res
		e.logger.Debug("tool executed",
			zap.String("name", call.Name),
			zap.Duration("duration", result.Duration))
		return result

	case <-execCtx.Done():
		if ctx.Err() != nil {
			return fail(fmt.Sprintf("execution cancelled: %v", ctx.Err()))
		}
		e.logger.Warn("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", timeout))
		return fail(fmt.Sprintf("execution timeout after %s", timeout))
	}
}
