package multiagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// END is the edge target that finishes a graph run.
const END = "END"

// DefaultGraphMaxIterations bounds node executions when none is set.
const DefaultGraphMaxIterations = 10

// GraphState is what edge conditions and input builders see.
type GraphState struct {
	Task           string
	ExecutionOrder []string
	Results        map[string]NodeResult
	// LastNode is the node that just finished.
	LastNode string
}

// LastOutput returns the output of the node that just finished.
func (s *GraphState) LastOutput() string {
	return s.Results[s.LastNode].Output
}

// Condition decides whether an edge is taken. A nil Condition always matches.
type Condition func(state *GraphState) bool

// InputBuilder renders the input for node from the state.
type InputBuilder func(node string, state *GraphState) string

// ContainsRouter matches when the last output contains any of the markers.
func ContainsRouter(markers ...string) Condition {
	return func(state *GraphState) bool {
		out := state.LastOutput()
		for _, m := range markers {
			if strings.Contains(out, m) {
				return true
			}
		}
		return false
	}
}

// NotContainsRouter matches when the last output contains none of the markers.
func NotContainsRouter(markers ...string) Condition {
	c := ContainsRouter(markers...)
	return func(state *GraphState) bool { return !c(state) }
}

// DefaultInputBuilder passes the task to the first node and, after that, the
// task followed by every earlier output.
func DefaultInputBuilder(_ string, state *GraphState) string {
	if len(state.ExecutionOrder) == 0 {
		return state.Task
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n", state.Task)
	for _, n := range state.ExecutionOrder {
		fmt.Fprintf(&b, "\nOutput from %s:\n%s\n", n, state.Results[n].Output)
	}
	return b.String()
}

type graphEdge struct {
	to   string
	cond Condition
}

// GraphBuilder assembles a Graph. Errors are collected and reported by Build.
type GraphBuilder struct {
	nodes         map[string]Executor
	order         []string
	edges         map[string][]graphEdge
	entry         string
	maxIterations int
	nodeTimeout   time.Duration
	input         InputBuilder
	logger        *zap.Logger
	collector     *metrics.Collector
	errs          []error
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes: make(map[string]Executor),
		edges: make(map[string][]graphEdge),
	}
}

// AddNode adds a node. The first node added becomes the entry point unless
// SetEntryPoint says otherwise.
func (b *GraphBuilder) AddNode(id string, exec Executor) *GraphBuilder {
	switch {
	case strings.TrimSpace(id) == "" || id == END:
		b.errs = append(b.errs, fmt.Errorf("invalid node id %q", id))
	case exec == nil:
		b.errs = append(b.errs, fmt.Errorf("node %s has no executor", id))
	case b.nodes[id] != nil:
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
	default:
		b.nodes[id] = exec
		b.order = append(b.order, id)
	}
	return b
}

// AddEdge adds a transition. Edges from one node are tried in the order they
// were added.
func (b *GraphBuilder) AddEdge(from, to string, cond Condition) *GraphBuilder {
	b.edges[from] = append(b.edges[from], graphEdge{to: to, cond: cond})
	return b
}

func (b *GraphBuilder) SetEntryPoint(id string) *GraphBuilder {
	b.entry = id
	return b
}

func (b *GraphBuilder) SetMaxIterations(n int) *GraphBuilder {
	b.maxIterations = n
	return b
}

func (b *GraphBuilder) SetNodeTimeout(d time.Duration) *GraphBuilder {
	b.nodeTimeout = d
	return b
}

func (b *GraphBuilder) SetInputBuilder(fn InputBuilder) *GraphBuilder {
	b.input = fn
	return b
}

func (b *GraphBuilder) WithLogger(logger *zap.Logger) *GraphBuilder {
	b.logger = logger
	return b
}

func (b *GraphBuilder) WithMetrics(c *metrics.Collector) *GraphBuilder {
	b.collector = c
	return b
}

// Build validates the graph: at least one node, an existing entry point and
// edges that reference known nodes or END.
func (b *GraphBuilder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)
	if len(b.nodes) == 0 {
		errs = append(errs, ErrNoNodes)
	}
	entry := b.entry
	if entry == "" && len(b.order) > 0 {
		entry = b.order[0]
	}
	if entry != "" && b.nodes[entry] == nil {
		errs = append(errs, fmt.Errorf("entry point: %w: %s", ErrNodeNotFound, entry))
	}
	for from, edges := range b.edges {
		if b.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("edge source: %w: %s", ErrNodeNotFound, from))
		}
		for _, e := range edges {
			if e.to != END && b.nodes[e.to] == nil {
				errs = append(errs, fmt.Errorf("edge %s -> %s: %w: %s", from, e.to, ErrNodeNotFound, e.to))
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("graph validation failed: %w", errors.Join(errs...))
	}

	g := &Graph{
		nodes:         make(map[string]Executor, len(b.nodes)),
		edges:         make(map[string][]graphEdge, len(b.edges)),
		entry:         entry,
		maxIterations: b.maxIterations,
		nodeTimeout:   b.nodeTimeout,
		input:         b.input,
		logger:        b.logger,
		collector:     b.collector,
	}
	for id, exec := range b.nodes {
		g.nodes[id] = exec
	}
	for from, edges := range b.edges {
		g.edges[from] = append([]graphEdge(nil), edges...)
	}
	if g.maxIterations <= 0 {
		g.maxIterations = DefaultGraphMaxIterations
	}
	if g.input == nil {
		g.input = DefaultInputBuilder
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.With(zap.String("component", "graph"))
	g.logger.Debug("graph built", zap.Int("nodes", len(g.nodes)), zap.String("entry", g.entry))
	return g, nil
}

// GraphResult is the outcome of Graph.Invoke.
type GraphResult struct {
	RunID          string                `json:"run_id"`
	Status         Status                `json:"status"`
	ExecutionOrder []string              `json:"execution_order"`
	Results        map[string]NodeResult `json:"results"`
	Output         string                `json:"output"`
	ExecutionTime  time.Duration         `json:"execution_time"`
	FailureReason  string                `json:"failure_reason,omitempty"`
}

// Graph runs nodes one at a time along conditional edges. It holds no run
// state and may be invoked concurrently if its executors allow it.
type Graph struct {
	nodes         map[string]Executor
	edges         map[string][]graphEdge
	entry         string
	maxIterations int
	nodeTimeout   time.Duration
	input         InputBuilder
	logger        *zap.Logger
	collector     *metrics.Collector
}

func (g *Graph) EntryPoint() string { return g.entry }

// Invoke runs task from the entry point until a node has no matching edge or
// an edge leads to END.
func (g *Graph) Invoke(ctx context.Context, task string) (*GraphResult, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	start := time.Now()
	ctx, runID := ensureRunID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "graph.invoke",
		attribute.String("graph.entry", g.entry),
		attribute.String("run.id", runID))
	defer span.End()

	state := &GraphState{Task: task, Results: make(map[string]NodeResult)}
	err := g.run(ctx, state)

	res := &GraphResult{
		RunID:          runID,
		Status:         StatusCompleted,
		ExecutionOrder: state.ExecutionOrder,
		Results:        state.Results,
		ExecutionTime:  time.Since(start),
	}
	if state.LastNode != "" {
		res.Output = state.LastOutput()
	}
	if err != nil {
		res.Status = StatusFailed
		res.FailureReason = err.Error()
		telemetry.Fail(span, err)
		g.logger.Warn("graph failed", zap.String("run_id", runID), zap.Error(err), zap.Strings("order", res.ExecutionOrder))
	} else {
		g.logger.Info("graph completed",
			zap.String("run_id", runID),
			zap.Strings("order", res.ExecutionOrder),
			zap.Duration("duration", res.ExecutionTime))
	}
	g.collector.RecordMultiAgentRun("graph", string(res.Status))
	return res, err
}

func (g *Graph) run(ctx context.Context, state *GraphState) error {
	current := g.entry
	for current != END {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(state.ExecutionOrder) >= g.maxIterations {
			return fmt.Errorf("%w (%d)", ErrMaxIterations, g.maxIterations)
		}

		input := g.input(current, state)
		nr, err := g.runNode(ctx, current, input)
		state.ExecutionOrder = append(state.ExecutionOrder, current)
		state.Results[current] = nr
		state.LastNode = current
		if err != nil {
			return fmt.Errorf("node %s: %w", current, err)
		}
		current = g.next(current, state)
	}
	return nil
}

func (g *Graph) runNode(ctx context.Context, id, input string) (NodeResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "graph.node", attribute.String("node.id", id))
	defer span.End()

	g.logger.Debug("executing node", zap.String("node", id))
	nr, err := runExecutor(ctx, id, g.nodes[id], input, g.nodeTimeout)
	g.collector.RecordGraphNode(id, err == nil)
	if err != nil {
		telemetry.Fail(span, err)
	}
	return nr, err
}

// next returns the target of the first edge whose condition accepts state,
// or END when none does.
func (g *Graph) next(from string, state *GraphState) string {
	for _, e := range g.edges[from] {
		if e.cond == nil || e.cond(state) {
			g.logger.Debug("edge taken", zap.String("from", from), zap.String("to", e.to))
			return e.to
		}
	}
	return END
}
