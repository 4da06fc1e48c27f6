package multiagent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agentswarm/agent"
	"github.com/BaSui01/agentswarm/internal/ctxkeys"
	"github.com/BaSui01/agentswarm/types"
)

// Status is the lifecycle state of a run or node.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// NodeResult is the outcome of the latest execution of one node.
type NodeResult struct {
	Node          string           `json:"node"`
	Status        Status           `json:"status"`
	Output        string           `json:"output"`
	Usage         types.TokenUsage `json:"usage"`
	ExecutionTime time.Duration    `json:"execution_time"`
	Error         string           `json:"error,omitempty"`
}

// Output is what an Executor produced.
type Output struct {
	Text  string
	Usage types.TokenUsage
}

// Executor runs one graph or pipeline node.
type Executor interface {
	Execute(ctx context.Context, input string) (Output, error)
}

// ExecutorFunc adapts a plain function into an Executor.
type ExecutorFunc func(ctx context.Context, input string) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, input string) (Output, error) {
	text, err := f(ctx, input)
	return Output{Text: text}, err
}

type agentExecutor struct {
	agent *agent.Agent
}

// AgentExecutor runs a with a fresh conversation for every execution, so a
// node revisited by a graph does not see its earlier turns.
func AgentExecutor(a *agent.Agent) Executor {
	return agentExecutor{agent: a}
}

func (e agentExecutor) Execute(ctx context.Context, input string) (Output, error) {
	e.agent.ResetConversation()
	res, err := e.agent.Invoke(ctx, input)
	if err != nil {
		return Output{}, err
	}
	return Output{Text: res.String(), Usage: res.Usage}, nil
}

// runExecutor applies the per-node timeout and converts the outcome into a
// NodeResult.
func runExecutor(ctx context.Context, id string, exec Executor, input string, timeout time.Duration) (NodeResult, error) {
	start := time.Now()
	nodeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := exec.Execute(nodeCtx, input)
	nr := NodeResult{
		Node:          id,
		Status:        StatusCompleted,
		Output:        out.Text,
		Usage:         out.Usage,
		ExecutionTime: time.Since(start),
	}
	if err != nil {
		err = classifyNodeError(ctx, nodeCtx, err, timeout)
		nr.Status = StatusFailed
		nr.Error = err.Error()
	}
	return nr, err
}

func classifyNodeError(parent, nodeCtx context.Context, err error, timeout time.Duration) error {
	if parent.Err() == nil && nodeCtx.Err() == context.DeadlineExceeded {
		return &timeoutError{sentinel: ErrNodeTimeout, after: timeout, cause: err}
	}
	return err
}

type timeoutError struct {
	sentinel error
	after    time.Duration
	cause    error
}

func (e *timeoutError) Error() string {
	return e.sentinel.Error() + " after " + e.after.String()
}

func (e *timeoutError) Unwrap() []error { return []error{e.sentinel, e.cause} }

// ensureRunID reuses the run id already on ctx, so a graph node running a
// swarm shares its parent's id, or mints a new one.
func ensureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := ctxkeys.RunID(ctx); ok && id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return ctxkeys.WithRunID(ctx, id), id
}
