// Package ctxkeys holds the context keys shared across agentswarm packages.
package ctxkeys

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	agentNameKey contextKey = "agent_name"
	userIDKey    contextKey = "user_id"
	stopFlagKey  contextKey = "stop_flag"
)

// WithRunID sets the multi-agent run id. Swarm and graph runs reuse an id
// already present.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the multi-agent run id.
func RunID(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

// WithAgentName records the agent currently executing.
func WithAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, agentNameKey, name)
}

// AgentName returns the agent currently executing.
func AgentName(ctx context.Context) (string, bool) {
	return stringValue(ctx, agentNameKey)
}

// WithUserID sets the end user on whose behalf the call runs.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the end user id.
func UserID(ctx context.Context) (string, bool) {
	return stringValue(ctx, userIDKey)
}

// WithStopFlag attaches a flag tools can raise to end the event loop after
// the current cycle.
func WithStopFlag(ctx context.Context, flag *atomic.Bool) context.Context {
	return context.WithValue(ctx, stopFlagKey, flag)
}

// StopFlag returns the attached stop flag, if any.
func StopFlag(ctx context.Context) (*atomic.Bool, bool) {
	v, ok := ctx.Value(stopFlagKey).(*atomic.Bool)
	return v, ok && v != nil
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
