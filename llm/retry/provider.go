package retry

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/agentswarm/llm"
)

// Provider retries Completion on retryable errors. It keeps the structured
// output capability of the provider it wraps.
type Provider struct {
	inner   llm.Provider
	retryer *Retryer
}

// WrapProvider returns inner unchanged when policy allows no retries.
func WrapProvider(inner llm.Provider, policy Policy, logger *zap.Logger) llm.Provider {
	if inner == nil || policy.MaxRetries <= 0 {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		inner:   inner,
		retryer: New(policy, logger.With(zap.String("provider", inner.Name()))),
	}
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return Do(ctx, p.retryer, func(ctx context.Context) (*llm.ChatResponse, error) {
		return p.inner.Completion(ctx, req)
	})
}

func (p *Provider) Name() string { return p.inner.Name() }

func (p *Provider) SupportsNativeFunctionCalling() bool {
	return p.inner.SupportsNativeFunctionCalling()
}

func (p *Provider) SupportsStructuredOutput() bool {
	so, ok := p.inner.(llm.StructuredOutputProvider)
	return ok && so.SupportsStructuredOutput()
}

// Unwrap returns the wrapped provider.
func (p *Provider) Unwrap() llm.Provider { return p.inner }
