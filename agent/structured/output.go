package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/types"
)

// ErrNoJSON is returned when a reply contains nothing that looks like JSON.
var ErrNoJSON = errors.New("no JSON found in response")

// ValidationError reports a reply that does not satisfy the schema.
type ValidationError struct {
	Raw    string
	Reason string
}

func (e *ValidationError) Error() string {
	return "structured output invalid: " + e.Reason
}

// Output parses model replies into T.
type Output[T any] struct {
	schema    json.RawMessage
	validator *tools.Validator
	// MaxRetries is the number of corrective re-prompts after a failed parse.
	MaxRetries int
}

// NewOutput reflects the schema for T.
func NewOutput[T any]() (*Output[T], error) {
	var zero T
	schema, err := tools.ReflectSchema(&zero)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %T: %w", zero, err)
	}
	return NewOutputWithSchema[T](schema)
}

// NewOutputWithSchema uses a caller-provided schema instead of reflection.
func NewOutputWithSchema[T any](schema json.RawMessage) (*Output[T], error) {
	v, err := tools.CompileSchema("structured_output", schema)
	if err != nil {
		return nil, err
	}
	return &Output[T]{schema: schema, validator: v, MaxRetries: 1}, nil
}

// Schema returns the JSON schema replies must satisfy.
func (o *Output[T]) Schema() json.RawMessage {
	return o.schema
}

// Instructions returns the system prompt addition used when the provider has
// no native JSON mode.
func (o *Output[T]) Instructions() string {
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON value that conforms to this JSON Schema:\n")
	sb.WriteString("```json\n")
	sb.Write(o.schema)
	sb.WriteString("\n```\n")
	sb.WriteString("Include every required field and respect enum values and bounds. ")
	sb.WriteString("Respond with ONLY the JSON, without commentary.")
	return sb.String()
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON pulls the JSON payload out of a model reply.
func ExtractJSON(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if m := fencedJSON.FindStringSubmatch(reply); len(m) > 1 {
		return strings.TrimSpace(m[1]), nil
	}
	if json.Valid([]byte(reply)) {
		return reply, nil
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(reply, pair[0])
		end := strings.LastIndex(reply, pair[1])
		if start >= 0 && end > start {
			return reply[start : end+1], nil
		}
	}
	return "", ErrNoJSON
}

// Parse extracts, validates and decodes a reply.
func (o *Output[T]) Parse(reply string) (*T, error) {
	payload, err := ExtractJSON(reply)
	if err != nil {
		return nil, &ValidationError{Raw: reply, Reason: err.Error()}
	}
	if err := o.validator.Validate(json.RawMessage(payload)); err != nil {
		return nil, &ValidationError{Raw: reply, Reason: err.Error()}
	}
	var value T
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return nil, &ValidationError{Raw: reply, Reason: err.Error()}
	}
	return &value, nil
}

// Prepare adapts req for structured output against provider and reports
// whether native JSON mode is used. Tools are removed in native mode.
func (o *Output[T]) Prepare(provider llm.Provider, req *llm.ChatRequest) bool {
	if SupportsNative(provider) {
		req.ResponseSchema = o.schema
		req.Tools = nil
		return true
	}
	if req.SystemPrompt != "" {
		req.SystemPrompt += "\n\n"
	}
	req.SystemPrompt += o.Instructions()
	return false
}

// Generation is the outcome of Generate.
type Generation[T any] struct {
	Value *T
	// Messages are the assistant replies and corrective prompts exchanged,
	// in order, so callers can persist them.
	Messages []types.Message
	Usage    types.TokenUsage
	Attempts int
}

// Generate runs req against provider until the reply parses or retries run
// out. On error the partial Generation is still returned.
func (o *Output[T]) Generate(ctx context.Context, provider llm.Provider, req *llm.ChatRequest) (*Generation[T], error) {
	call := *req
	call.Messages = append([]llm.Message(nil), req.Messages...)
	o.Prepare(provider, &call)

	gen := &Generation[T]{}
	var lastErr error
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		resp, err := provider.Completion(ctx, &call)
		if err != nil {
			return gen, fmt.Errorf("provider completion failed: %w", err)
		}
		gen.Attempts++
		gen.Usage.Add(resp.Usage.TokenUsage())
		reply := resp.FirstMessage()
		reply.Role = types.RoleAssistant
		gen.Messages = append(gen.Messages, reply)

		value, err := o.Parse(reply.Content)
		if err == nil {
			gen.Value = value
			return gen, nil
		}
		lastErr = err
		if attempt == o.MaxRetries {
			break
		}

		retry := types.NewUserMessage(CorrectionPrompt(err))
		gen.Messages = append(gen.Messages, retry)
		call.Messages = append(call.Messages, reply, retry)
	}
	return gen, lastErr
}

// CorrectionPrompt asks the model to fix a reply that failed to parse.
func CorrectionPrompt(err error) string {
	return fmt.Sprintf("Your previous reply was not valid: %s. Reply again with only JSON that matches the schema.", err)
}

// SupportsNative reports whether provider honours ChatRequest.ResponseSchema.
func SupportsNative(provider llm.Provider) bool {
	sp, ok := provider.(llm.StructuredOutputProvider)
	return ok && sp.SupportsStructuredOutput()
}
