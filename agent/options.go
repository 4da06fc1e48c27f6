package agent

import (
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/internal/metrics"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"go.uber.org/zap"
)

// Config holds the static settings of an agent.
type Config struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description,omitempty" yaml:"description"`
	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Model        string        `json:"model,omitempty" yaml:"model"`
	Temperature  *float32      `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens    int           `json:"max_tokens,omitempty" yaml:"max_tokens"`
	MaxCycles    int           `json:"max_cycles,omitempty" yaml:"max_cycles"`
	ToolTimeout  time.Duration `json:"tool_timeout,omitempty" yaml:"tool_timeout"`
	SessionID    string        `json:"session_id,omitempty" yaml:"session_id"`
}

// DefaultMaxCycles bounds model calls per invocation.
const DefaultMaxCycles = 20

// Option configures an Agent.
type Option func(*Agent)

// WithConfig replaces the whole Config. Later options still apply on top.
func WithConfig(cfg Config) Option {
	return func(a *Agent) { a.config = cfg }
}

func WithName(name string) Option {
	return func(a *Agent) { a.config.Name = name }
}

func WithDescription(desc string) Option {
	return func(a *Agent) { a.config.Description = desc }
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.config.SystemPrompt = strings.TrimSpace(prompt) }
}

func WithModel(model string) Option {
	return func(a *Agent) { a.config.Model = model }
}

func WithTemperature(t float32) Option {
	return func(a *Agent) { a.config.Temperature = &t }
}

func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.config.MaxTokens = n }
}

// WithMaxCycles bounds model calls per invocation.
func WithMaxCycles(n int) Option {
	return func(a *Agent) { a.config.MaxCycles = n }
}

// WithToolTimeout applies to tools registered through WithTools or AddTool
// that carry no timeout of their own.
func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) { a.config.ToolTimeout = d }
}

// WithTools registers tools on the agent's registry.
func WithTools(tools ...llmtools.Tool) Option {
	return func(a *Agent) { a.pendingTools = append(a.pendingTools, tools...) }
}

// WithRegistry shares an existing registry. Tools from WithTools are added to it.
func WithRegistry(registry llmtools.ToolRegistry) Option {
	return func(a *Agent) { a.registry = registry }
}

// WithToolAllowlist restricts the agent to the named tools even when the
// registry holds more.
func WithToolAllowlist(names ...string) Option {
	return func(a *Agent) {
		if a.allowed == nil {
			a.allowed = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				a.allowed[n] = struct{}{}
			}
		}
	}
}

// WithOutputSanitizer rewrites tool results and assistant text before they
// enter the conversation.
func WithOutputSanitizer(fn func(string) string) Option {
	return func(a *Agent) { a.sanitize = fn }
}

func WithConversationManager(cm ConversationManager) Option {
	return func(a *Agent) { a.conversation = cm }
}

// WithSession persists the conversation under sessionID. History is
// restored on the first invocation or by Restore.
func WithSession(manager session.Manager, sessionID string) Option {
	return func(a *Agent) {
		a.sessions = manager
		a.config.SessionID = sessionID
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(a *Agent) { a.collector = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}
