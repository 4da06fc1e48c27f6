package multiagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/agent"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/internal/telemetry"
	"github.com/BaSui01/agentswarm/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SwarmConfig bounds a swarm run. Zero values take the defaults.
type SwarmConfig struct {
	MaxHandoffs      int           `json:"max_handoffs" yaml:"max_handoffs"`
	MaxIterations    int           `json:"max_iterations" yaml:"max_iterations"`
	ExecutionTimeout time.Duration `json:"execution_timeout" yaml:"execution_timeout"`
	NodeTimeout      time.Duration `json:"node_timeout" yaml:"node_timeout"`

	// RepetitiveHandoffWindow is how many recent nodes are inspected for
	// ping-pong. Zero disables the check.
	RepetitiveHandoffWindow int `json:"repetitive_handoff_window" yaml:"repetitive_handoff_window"`
	// RepetitiveHandoffMinUnique is the least number of distinct agents the
	// window must contain.
	RepetitiveHandoffMinUnique int `json:"repetitive_handoff_min_unique" yaml:"repetitive_handoff_min_unique"`
}

// DefaultSwarmConfig returns the limits used by the order support swarm.
func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		MaxHandoffs:      5,
		MaxIterations:    10,
		ExecutionTimeout: 300 * time.Second,
		NodeTimeout:      120 * time.Second,
	}
}

// SwarmOption configures a Swarm.
type SwarmOption func(*Swarm)

func WithEntryPoint(name string) SwarmOption {
	return func(s *Swarm) { s.entry = name }
}

// WithSwarmConfig replaces every limit at once.
func WithSwarmConfig(cfg SwarmConfig) SwarmOption {
	return func(s *Swarm) { s.cfg = cfg }
}

func WithMaxHandoffs(n int) SwarmOption {
	return func(s *Swarm) { s.cfg.MaxHandoffs = n }
}

func WithMaxIterations(n int) SwarmOption {
	return func(s *Swarm) { s.cfg.MaxIterations = n }
}

func WithExecutionTimeout(d time.Duration) SwarmOption {
	return func(s *Swarm) { s.cfg.ExecutionTimeout = d }
}

func WithNodeTimeout(d time.Duration) SwarmOption {
	return func(s *Swarm) { s.cfg.NodeTimeout = d }
}

func WithRepetitiveHandoffDetection(window, minUnique int) SwarmOption {
	return func(s *Swarm) {
		s.cfg.RepetitiveHandoffWindow = window
		s.cfg.RepetitiveHandoffMinUnique = minUnique
	}
}

func WithLogger(logger *zap.Logger) SwarmOption {
	return func(s *Swarm) { s.logger = logger }
}

func WithMetrics(c *metrics.Collector) SwarmOption {
	return func(s *Swarm) { s.collector = c }
}

// Handoff records one transfer of control.
type Handoff struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// SwarmResult is the outcome of Swarm.Invoke.
type SwarmResult struct {
	RunID            string                `json:"run_id"`
	Status           Status                `json:"status"`
	NodeHistory      []string              `json:"node_history"`
	Results          map[string]NodeResult `json:"results"`
	Output           string                `json:"output"`
	AccumulatedUsage types.TokenUsage      `json:"accumulated_usage"`
	ExecutionTime    time.Duration         `json:"execution_time"`
	Handoffs         []Handoff             `json:"handoffs"`
	FailureReason    string                `json:"failure_reason,omitempty"`
}

// Swarm lets peer agents pass a task between themselves. Each agent gets a
// handoff_to_agent tool; a node that answers without calling it ends the run.
// Agents restricted with agent.WithToolAllowlist must list HandoffToolName.
// Runs on one Swarm are serialized.
type Swarm struct {
	nodes     map[string]*agent.Agent
	order     []string
	entry     string
	cfg       SwarmConfig
	logger    *zap.Logger
	collector *metrics.Collector

	mu sync.Mutex
}

// NewSwarm registers the handoff tool on every agent. The entry point
// defaults to the first agent.
func NewSwarm(nodes []*agent.Agent, opts ...SwarmOption) (*Swarm, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	s := &Swarm{
		nodes: make(map[string]*agent.Agent, len(nodes)),
		cfg:   DefaultSwarmConfig(),
	}
	for _, a := range nodes {
		if _, dup := s.nodes[a.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, a.Name())
		}
		s.nodes[a.Name()] = a
		s.order = append(s.order, a.Name())
	}
	for _, opt := range opts {
		opt(s)
	}

	def := DefaultSwarmConfig()
	if s.cfg.MaxHandoffs <= 0 {
		s.cfg.MaxHandoffs = def.MaxHandoffs
	}
	if s.cfg.MaxIterations <= 0 {
		s.cfg.MaxIterations = def.MaxIterations
	}
	if s.entry == "" {
		s.entry = s.order[0]
	}
	if _, ok := s.nodes[s.entry]; !ok {
		return nil, fmt.Errorf("entry point: %w: %s", ErrNodeNotFound, s.entry)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("component", "swarm"))

	for _, name := range s.order {
		a := s.nodes[name]
		reg := a.Registry()
		if reg.Has(HandoffToolName) {
			if err := reg.Unregister(HandoffToolName); err != nil {
				return nil, err
			}
		}
		if err := a.AddTool(s.handoffTool(name)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Nodes returns the agent names in registration order.
func (s *Swarm) Nodes() []string { return append([]string(nil), s.order...) }

func (s *Swarm) EntryPoint() string { return s.entry }

func (s *Swarm) Config() SwarmConfig { return s.cfg }

// Invoke runs task starting at the entry point. A failed run returns both the
// partial result and an error wrapping the cause.
func (s *Swarm) Invoke(ctx context.Context, task string) (*SwarmResult, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if s.cfg.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExecutionTimeout)
		defer cancel()
	}
	ctx, runID := ensureRunID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "swarm.invoke",
		attribute.String("swarm.entry", s.entry),
		attribute.String("run.id", runID))
	defer span.End()

	run := &swarmRun{}
	ctx = withSwarmRun(ctx, run)

	res := &SwarmResult{
		RunID:   runID,
		Status:  StatusExecuting,
		Results: make(map[string]NodeResult),
	}
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("swarm started", zap.String("entry", s.entry), zap.Int("nodes", len(s.order)))

	err := s.loop(ctx, run, task, res)
	res.ExecutionTime = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.FailureReason = err.Error()
		telemetry.Fail(span, err)
		logger.Warn("swarm failed", zap.Error(err), zap.Strings("history", res.NodeHistory))
	} else {
		res.Status = StatusCompleted
		logger.Info("swarm completed",
			zap.Strings("history", res.NodeHistory),
			zap.Int("handoffs", len(res.Handoffs)),
			zap.Duration("duration", res.ExecutionTime))
	}
	span.SetAttributes(
		attribute.String("swarm.status", string(res.Status)),
		attribute.Int("swarm.nodes_executed", len(res.NodeHistory)))
	s.collector.RecordMultiAgentRun("swarm", string(res.Status))
	return res, err
}

func (s *Swarm) loop(ctx context.Context, run *swarmRun, task string, res *SwarmResult) error {
	current := s.entry
	var incoming *Handoff
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrExecutionTimeout, s.cfg.ExecutionTimeout)
			}
			return err
		}
		if len(res.NodeHistory) >= s.cfg.MaxIterations {
			return fmt.Errorf("%w (%d)", ErrMaxIterations, s.cfg.MaxIterations)
		}
		if s.repetitive(res.NodeHistory) {
			return fmt.Errorf("%w: fewer than %d distinct agents in the last %d nodes",
				ErrRepetitiveHandoff, s.cfg.RepetitiveHandoffMinUnique, s.cfg.RepetitiveHandoffWindow)
		}

		input := s.nodeInput(task, current, incoming, res, run)
		run.begin(current)
		nr, err := s.runNode(ctx, current, input)
		handoff := run.take()

		res.NodeHistory = append(res.NodeHistory, current)
		res.Results[current] = nr
		res.AccumulatedUsage.Add(nr.Usage)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w after %s", ErrExecutionTimeout, s.cfg.ExecutionTimeout)
			}
			return fmt.Errorf("node %s: %w", current, err)
		}
		res.Output = nr.Output
		if handoff == nil {
			return nil
		}

		res.Handoffs = append(res.Handoffs, *handoff)
		if len(res.Handoffs) > s.cfg.MaxHandoffs {
			return fmt.Errorf("%w (%d)", ErrMaxHandoffs, s.cfg.MaxHandoffs)
		}
		s.collector.RecordHandoff(handoff.From, handoff.To)
		s.logger.Info("handoff",
			zap.String("from", handoff.From),
			zap.String("to", handoff.To),
			zap.String("message", handoff.Message))
		if len(handoff.Context) > 0 {
			run.share(handoff.From, handoff.Context)
		}
		incoming = handoff
		current = handoff.To
	}
}

func (s *Swarm) runNode(ctx context.Context, name, input string) (NodeResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "swarm.node", attribute.String("node.name", name))
	defer span.End()

	s.logger.Debug("executing node", zap.String("node", name))
	nr, err := runExecutor(ctx, name, AgentExecutor(s.nodes[name]), input, s.cfg.NodeTimeout)
	if err != nil {
		telemetry.Fail(span, err)
		s.logger.Error("node failed", zap.String("node", name), zap.Error(err))
	}
	return nr, err
}

// repetitive reports whether the last window nodes contain fewer distinct
// agents than required.
func (s *Swarm) repetitive(history []string) bool {
	window := s.cfg.RepetitiveHandoffWindow
	if window <= 0 || s.cfg.RepetitiveHandoffMinUnique <= 0 || len(history) < window {
		return false
	}
	seen := make(map[string]struct{}, window)
	for _, n := range history[len(history)-window:] {
		seen[n] = struct{}{}
	}
	return len(seen) < s.cfg.RepetitiveHandoffMinUnique
}
