package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/agentswarm/types"
)

// Aliases keep call sites short; the definitions live in types.
type (
	Role       = types.Role
	Message    = types.Message
	ToolCall   = types.ToolCall
	ToolSchema = types.ToolSchema
	TokenUsage = types.TokenUsage
)

const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
	RoleTool      = types.RoleTool
)

// Finish reasons reported on ChatChoice.
const (
	FinishReasonStop          = "stop"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Model        string        `json:"model"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Messages     []Message     `json:"messages"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Temperature  *float32      `json:"temperature,omitempty"`
	Tools        []ToolSchema  `json:"tools,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	// ResponseSchema requests JSON output matching the given JSON schema.
	ResponseSchema json.RawMessage   `json:"response_schema,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ChatChoice is one candidate completion.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// ChatUsage reports token accounting for a single call.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TokenUsage converts the per-call usage into the accumulating form.
func (u ChatUsage) TokenUsage() TokenUsage {
	return TokenUsage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

// ChatResponse is a provider-neutral completion response.
type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage"`
	CreatedAt time.Time    `json:"created_at"`
}

// FirstMessage returns the first choice's message or an empty assistant message.
func (r *ChatResponse) FirstMessage() Message {
	if r == nil || len(r.Choices) == 0 {
		return Message{Role: RoleAssistant}
	}
	return r.Choices[0].Message
}

// FinishReason returns the first choice's finish reason.
func (r *ChatResponse) FinishReason() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].FinishReason
}

// Provider is implemented by every model backend.
type Provider interface {
	// Completion sends a request and returns the full response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier, e.g. "gemini".
	Name() string

	// SupportsNativeFunctionCalling reports whether tools are passed natively.
	SupportsNativeFunctionCalling() bool
}

// StructuredOutputProvider is implemented by providers that honour
// ChatRequest.ResponseSchema natively.
type StructuredOutputProvider interface {
	Provider
	SupportsStructuredOutput() bool
}
