package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentswarm/agent/structured"
	"github.com/BaSui01/agentswarm/internal/ctxkeys"
	"github.com/BaSui01/agentswarm/internal/telemetry"
	"github.com/BaSui01/agentswarm/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StructuredOutput asks a for a value of type T, using the conversation so
// far plus prompt (which may be empty). Native JSON mode is used when the
// provider supports it; otherwise the schema goes into the system prompt.
// A reply that fails schema validation is retried once.
func StructuredOutput[T any](ctx context.Context, a *Agent, prompt string) (*T, error) {
	res, err := InvokeStructured[T](ctx, a, prompt)
	if err != nil {
		return nil, err
	}
	return res.StructuredOutput.(*T), nil
}

// InvokeStructured is StructuredOutput returning the full Result.
func InvokeStructured[T any](ctx context.Context, a *Agent, prompt string) (*Result, error) {
	out, err := structured.NewOutput[T]()
	if err != nil {
		return nil, err
	}

	a.invokeMu.Lock()
	defer a.invokeMu.Unlock()

	start := time.Now()
	ctx = ctxkeys.WithAgentName(ctx, a.config.Name)
	ctx, span := telemetry.StartSpan(ctx, "agent.structured_output",
		attribute.String("agent.name", a.config.Name),
		attribute.Bool("structured.native", structured.SupportsNative(a.provider)))
	defer span.End()

	fail := func(err error) (*Result, error) {
		telemetry.Fail(span, err)
		a.collector.RecordAgentInvocation(a.config.Name, "error", time.Since(start), 0)
		return nil, err
	}

	if err := a.Restore(ctx); err != nil {
		return fail(err)
	}
	if prompt != "" {
		if err := a.appendMessage(ctx, types.NewUserMessage(prompt)); err != nil {
			return fail(err)
		}
	}
	a.applyWindow()

	gen, genErr := out.Generate(ctx, a.provider, a.buildRequest(false))
	for _, msg := range gen.Messages {
		if err := a.appendMessage(ctx, msg); err != nil {
			return fail(err)
		}
	}
	a.recordCycle(time.Since(start), gen.Usage)
	if genErr != nil {
		return fail(fmt.Errorf("structured output: %w", genErr))
	}

	last := gen.Messages[len(gen.Messages)-1]
	a.logger.Debug("structured output produced", zap.Int("attempts", gen.Attempts))
	a.collector.RecordAgentInvocation(a.config.Name, "success", time.Since(start), gen.Attempts)

	res := a.result(last, StopReasonEndTurn, gen.Attempts, gen.Usage)
	res.StructuredOutput = gen.Value
	return res, nil
}
