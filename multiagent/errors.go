package multiagent

import "errors"

var (
	ErrNoNodes       = errors.New("no nodes configured")
	ErrDuplicateNode = errors.New("duplicate node")
	ErrNodeNotFound  = errors.New("node not found")
	ErrEmptyTask     = errors.New("task is empty")

	// ErrMaxHandoffs is returned when a swarm exceeds its handoff budget.
	ErrMaxHandoffs = errors.New("max handoffs reached")

	// ErrMaxIterations is returned when a swarm or graph runs more nodes than
	// allowed.
	ErrMaxIterations = errors.New("max iterations reached")

	// ErrRepetitiveHandoff is returned when too few distinct agents appear in
	// the recent node history.
	ErrRepetitiveHandoff = errors.New("repetitive handoff detected")

	ErrExecutionTimeout = errors.New("execution timed out")
	ErrNodeTimeout      = errors.New("node timed out")
)
