package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	providerName = "gemini"

	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = float32(0.7)
	DefaultTimeout     = 60 * time.Second
)

// Config configures the Gemini provider.
type Config struct {
	APIKey          string        `json:"api_key" yaml:"api_key"`
	Model           string        `json:"model" yaml:"model"`
	Temperature     *float32      `json:"temperature,omitempty" yaml:"temperature"` // nil uses DefaultTemperature
	MaxOutputTokens int           `json:"max_output_tokens" yaml:"max_output_tokens"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// generator is the slice of *genai.Models the provider needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements llm.Provider on top of the Gemini API.
type Provider struct {
	cfg    Config
	models generator
	logger *zap.Logger
}

// New creates a Gemini provider backed by the Gemini Developer API.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, llm.NewError(types.ErrUnauthorized, "gemini api key is not set (GEMINI_API_KEY)", providerName)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llm.NewError(types.ErrInternalError, "create gemini client", providerName).WithCause(err)
	}

	return newProvider(cfg, client.Models, logger), nil
}

func newProvider(cfg Config, models generator, logger *zap.Logger) *Provider {
	return &Provider{
		cfg:    cfg.withDefaults(),
		models: models,
		logger: logger.With(zap.String("component", "gemini")),
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) SupportsNativeFunctionCalling() bool { return true }

func (p *Provider) SupportsStructuredOutput() bool { return true }

// Model returns the configured default model.
func (p *Provider) Model() string { return p.cfg.Model }

// Completion sends the conversation to generateContent.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil {
		return nil, llm.NewError(types.ErrInvalidRequest, "request is nil", providerName)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = p.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system, contents, err := convertMessages(req.SystemPrompt, req.Messages)
	if err != nil {
		return nil, llm.NewError(types.ErrInvalidRequest, err.Error(), providerName).WithCause(err)
	}
	if len(contents) == 0 {
		return nil, llm.NewError(types.ErrInvalidRequest, "no messages to send", providerName)
	}

	cfg, err := p.buildConfig(req, system)
	if err != nil {
		return nil, llm.NewError(types.ErrInvalidRequest, err.Error(), providerName).WithCause(err)
	}

	model := chooseModel(req, p.cfg.Model)
	start := time.Now()
	resp, err := p.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		mapped := mapError(err)
		p.logger.Warn("generateContent failed",
			zap.String("model", model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(mapped),
		)
		return nil, mapped
	}

	out, err := toChatResponse(resp, model)
	if err != nil {
		return nil, llm.NewError(types.ErrUpstreamError, err.Error(), providerName).WithCause(err)
	}

	p.logger.Debug("generateContent completed",
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.String("finish_reason", out.FinishReason()),
	)
	return out, nil
}

func (p *Provider) buildConfig(req *llm.ChatRequest, system *genai.Content) (*genai.GenerateContentConfig, error) {
	temperature := *p.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := p.cfg.MaxOutputTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(temperature),
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	tools, err := convertTools(req.Tools)
	if err != nil {
		return nil, err
	}
	cfg.Tools = tools

	// Gemini rejects JSON mode combined with function declarations.
	if len(req.ResponseSchema) > 0 && len(tools) == 0 {
		schema, err := convertSchemaJSON(req.ResponseSchema)
		if err != nil {
			return nil, err
		}
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}
	return cfg, nil
}

func chooseModel(req *llm.ChatRequest, fallback string) string {
	if req != nil && strings.TrimSpace(req.Model) != "" {
		return strings.TrimSpace(req.Model)
	}
	if fallback != "" {
		return fallback
	}
	return DefaultModel
}

func mapError(err error) error {
	if ctxErr := llm.ErrorFromContext(err, providerName); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.ErrorFromStatus(apiErr.Code, apiErr.Message, providerName).WithCause(err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return llm.ErrorFromStatus(apiErrPtr.Code, apiErrPtr.Message, providerName).WithCause(err)
	}

	return llm.NewError(types.ErrUpstreamError, err.Error(), providerName).
		WithCause(err).
		WithRetryable(true)
}
