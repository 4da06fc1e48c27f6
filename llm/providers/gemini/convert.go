package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/llm"
	"google.golang.org/genai"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// convertMessages splits system text into SystemInstruction and maps the rest
// of the conversation to Gemini contents. Consecutive tool results are merged
// into a single user turn, which is how Gemini expects parallel function
// responses.
func convertMessages(systemPrompt string, msgs []llm.Message) (*genai.Content, []*genai.Content, error) {
	var systemParts []*genai.Part
	if strings.TrimSpace(systemPrompt) != "" {
		systemParts = append(systemParts, &genai.Part{Text: systemPrompt})
	}

	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if m.Content != "" {
				systemParts = append(systemParts, &genai.Part{Text: m.Content})
			}

		case llm.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name:     m.Name,
				Response: toolResponse(m),
			}}
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{part}})

		case llm.RoleAssistant:
			c := &genai.Content{Role: roleModel}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &args); err != nil {
						return nil, nil, fmt.Errorf("tool call %s has invalid arguments: %w", tc.Name, err)
					}
				}
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: args,
				}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}

		case llm.RoleUser:
			if m.Content == "" {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  roleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})

		default:
			return nil, nil, fmt.Errorf("unsupported role %q", m.Role)
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	return system, contents, nil
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != roleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func toolResponse(m llm.Message) map[string]any {
	if m.IsError {
		return map[string]any{"error": strings.TrimPrefix(m.Content, "Error: ")}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(m.Content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": m.Content}
}

func convertTools(tools []llm.ToolSchema) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Parameters) > 0 {
			schema, err := convertSchemaJSON(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name, err)
			}
			// Gemini rejects an OBJECT schema with no properties.
			if schema.Type != genai.TypeObject || len(schema.Properties) > 0 {
				decl.Parameters = schema
			}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

func convertSchemaJSON(raw json.RawMessage) (*genai.Schema, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid json schema: %w", err)
	}
	return convertSchema(m), nil
}

// convertSchema maps a JSON schema document onto the OpenAPI subset Gemini
// accepts. Unknown keywords are dropped.
func convertSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if f, ok := m["format"].(string); ok && (f == "enum" || f == "date-time") {
		s.Format = f
	}

	switch t := m["type"].(type) {
	case string:
		s.Type = schemaType(t)
	case []any:
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				s.Nullable = genai.Ptr(true)
				continue
			}
			s.Type = schemaType(name)
		}
	}
	if s.Type == genai.TypeUnspecified {
		if _, ok := m["properties"]; ok {
			s.Type = genai.TypeObject
		}
	}

	if enum, ok := m["enum"].([]any); ok {
		for _, v := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(v))
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = convertSchema(pm)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, v := range req {
			if name, ok := v.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = convertSchema(items)
	}
	return s
}

func schemaType(t string) genai.Type {
	switch strings.ToLower(t) {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func toChatResponse(resp *genai.GenerateContentResponse, model string) (*llm.ChatResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}

	out := &llm.ChatResponse{
		Provider:  providerName,
		Model:     model,
		CreatedAt: time.Now(),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for i, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		msg := llm.Message{Role: llm.RoleAssistant, Timestamp: out.CreatedAt}
		var text strings.Builder
		if cand.Content != nil {
			for idx, part := range cand.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				if part.Text != "" {
					text.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					args, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return nil, fmt.Errorf("marshal function call args: %w", err)
					}
					id := part.FunctionCall.ID
					if id == "" {
						id = fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, idx)
					}
					msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
						ID:        id,
						Name:      part.FunctionCall.Name,
						Arguments: args,
					})
				}
			}
		}
		msg.Content = text.String()

		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        i,
			FinishReason: finishReason(cand.FinishReason, len(msg.ToolCalls) > 0),
			Message:      msg,
		})
	}

	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	return out, nil
}

func finishReason(fr genai.FinishReason, hasToolCalls bool) string {
	if hasToolCalls {
		return llm.FinishReasonToolCalls
	}
	switch fr {
	case genai.FinishReasonMaxTokens:
		return llm.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonStop
	}
}
