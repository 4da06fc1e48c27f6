package multiagent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/internal/metrics"
	"go.uber.org/zap"
)

// PipelineStep is one stage of a Pipeline. Prompt may reference {{input}} and
// {{<name>}} of any earlier step. An empty Prompt passes the previous output
// on unchanged.
type PipelineStep struct {
	Name     string
	Executor Executor
	Prompt   string
}

// PipelineResult is the outcome of Pipeline.Run.
type PipelineResult struct {
	Status        Status                `json:"status"`
	Order         []string              `json:"order"`
	Results       map[string]NodeResult `json:"results"`
	Output        string                `json:"output"`
	ExecutionTime time.Duration         `json:"execution_time"`
	FailureReason string                `json:"failure_reason,omitempty"`
}

// Pipeline runs steps in order, feeding earlier outputs into later prompts.
// It is the agent-to-agent pattern where a coordinator delegates to
// specialists and then synthesizes their answers.
type Pipeline struct {
	steps       []PipelineStep
	stepTimeout time.Duration
	logger      *zap.Logger
	collector   *metrics.Collector
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\s*\}\}`)

const inputPlaceholder = "input"

// NewPipeline validates step names and placeholders.
func NewPipeline(steps ...PipelineStep) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, ErrNoNodes
	}
	seen := map[string]bool{inputPlaceholder: true}
	var errs []error
	for i, st := range steps {
		switch {
		case strings.TrimSpace(st.Name) == "" || st.Name == inputPlaceholder:
			errs = append(errs, fmt.Errorf("step %d: invalid name %q", i+1, st.Name))
			continue
		case seen[st.Name]:
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, st.Name))
		case st.Executor == nil:
			errs = append(errs, fmt.Errorf("step %s has no executor", st.Name))
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(st.Prompt, -1) {
			if !seen[m[1]] {
				errs = append(errs, fmt.Errorf("step %s references unknown or later step %q", st.Name, m[1]))
			}
		}
		seen[st.Name] = true
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("pipeline validation failed: %w", errors.Join(errs...))
	}
	return &Pipeline{steps: steps, logger: zap.NewNop()}, nil
}

func (p *Pipeline) WithLogger(logger *zap.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger.With(zap.String("component", "pipeline"))
	}
	return p
}

func (p *Pipeline) WithMetrics(c *metrics.Collector) *Pipeline {
	p.collector = c
	return p
}

func (p *Pipeline) WithStepTimeout(d time.Duration) *Pipeline {
	p.stepTimeout = d
	return p
}

// Run executes every step. The output of the last step is the pipeline output.
func (p *Pipeline) Run(ctx context.Context, input string) (*PipelineResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyTask
	}
	start := time.Now()
	res := &PipelineResult{Status: StatusExecuting, Results: make(map[string]NodeResult)}
	outputs := map[string]string{inputPlaceholder: input}
	prev := input

	var err error
	for _, st := range p.steps {
		if err = ctx.Err(); err != nil {
			break
		}
		prompt := prev
		if st.Prompt != "" {
			prompt = render(st.Prompt, outputs)
		}
		p.logger.Debug("running step", zap.String("step", st.Name))

		var nr NodeResult
		nr, err = runExecutor(ctx, st.Name, st.Executor, prompt, p.stepTimeout)
		res.Order = append(res.Order, st.Name)
		res.Results[st.Name] = nr
		p.collector.RecordGraphNode(st.Name, err == nil)
		if err != nil {
			err = fmt.Errorf("step %s: %w", st.Name, err)
			break
		}
		outputs[st.Name] = nr.Output
		prev = nr.Output
		res.Output = nr.Output
	}

	res.ExecutionTime = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.FailureReason = err.Error()
		p.logger.Warn("pipeline failed", zap.Error(err))
	} else {
		res.Status = StatusCompleted
		p.logger.Info("pipeline completed", zap.Strings("order", res.Order), zap.Duration("duration", res.ExecutionTime))
	}
	p.collector.RecordMultiAgentRun("pipeline", string(res.Status))
	return res, err
}

func render(prompt string, outputs map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(prompt, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return outputs[name]
	})
}
