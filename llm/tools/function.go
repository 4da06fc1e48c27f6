package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentswarm/llm"
)

// Tool bundles a function with its metadata so it can be handed around
// before a registry exists.
type Tool struct {
	Func     ToolFunc
	Metadata ToolMetadata
}

// Name returns the tool's schema name.
func (t Tool) Name() string { return t.Metadata.Schema.Name }

// Register adds t to registry.
func (t Tool) Register(registry ToolRegistry) error {
	return registry.Register(t.Name(), t.Func, t.Metadata)
}

// WithTimeout returns a copy of t with the given execution timeout.
func (t Tool) WithTimeout(d time.Duration) Tool {
	t.Metadata.Timeout = d
	return t
}

// WithRateLimit returns a copy of t limited to maxCalls per window.
func (t Tool) WithRateLimit(maxCalls int, window time.Duration) Tool {
	t.Metadata.RateLimit = &RateLimitConfig{MaxCalls: maxCalls, Window: window}
	return t
}

// RegisterAll registers every tool, stopping at the first error.
func RegisterAll(registry ToolRegistry, tools ...Tool) error {
	for _, t := range tools {
		if err := t.Register(registry); err != nil {
			return err
		}
	}
	return nil
}

// NewTool wraps a raw ToolFunc with a hand-written parameter schema.
func NewTool(name, description string, parameters json.RawMessage, fn ToolFunc) Tool {
	return Tool{
		Func: fn,
		Metadata: ToolMetadata{
			Schema: llm.ToolSchema{
				Name:        name,
				Description: description,
				Parameters:  parameters,
			},
		},
	}
}

// NewFunctionTool builds a typed tool. The parameter schema is reflected
// from T and arguments are validated against it before fn runs. String
// results are returned as JSON strings; everything else is marshalled.
func NewFunctionTool[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) (Tool, error) {
	var zero T
	params, err := ReflectSchema(&zero)
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}

	call := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
		}
		out, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return marshalResult(out)
	}

	t := NewTool(name, description, params, call)
	t.Metadata.Validate = true
	return t, nil
}

// MustFunctionTool is NewFunctionTool that panics on schema errors. Intended
// for package-level tool declarations.
func MustFunctionTool[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) Tool {
	t, err := NewFunctionTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func marshalResult(v any) (json.RawMessage, error) {
	switch r := v.(type) {
	case nil:
		return json.RawMessage(`null`), nil
	case json.RawMessage:
		if json.Valid(r) {
			return r, nil
		}
		return json.Marshal(string(r))
	case []byte:
		return json.Marshal(string(r))
	default:
		return json.Marshal(r)
	}
}
