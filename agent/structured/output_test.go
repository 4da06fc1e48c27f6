package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replyProvider struct {
	replies  []string
	err      error
	native   bool
	requests []*llm.ChatRequest
}

func (p *replyProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	reply := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{
		Message: types.NewAssistantMessage(reply),
	}}}, nil
}

func (p *replyProvider) Name() string                        { return "reply" }
func (p *replyProvider) SupportsNativeFunctionCalling() bool { return true }
func (p *replyProvider) SupportsStructuredOutput() bool      { return p.native }

type ticket struct {
	Category string `json:"category" jsonschema:"enum=bug,enum=feature,enum=question"`
	Priority int    `json:"priority" jsonschema:"minimum=1,maximum=5"`
	Summary  string `json:"summary,omitempty"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{name: "plain", reply: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", reply: "Here:\n```json\n{\"a\":1}\n```\nthanks", want: `{"a":1}`},
		{name: "fenced no lang", reply: "```\n[1,2]\n```", want: `[1,2]`},
		{name: "prose around object", reply: `Sure! {"a":{"b":2}} hope that helps`, want: `{"a":{"b":2}}`},
		{name: "array", reply: `result: [1, 2, 3].`, want: `[1, 2, 3]`},
		{name: "none", reply: "no json here", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.reply)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutput_Parse(t *testing.T) {
	out, err := NewOutput[ticket]()
	require.NoError(t, err)
	assert.Contains(t, string(out.Schema()), `"category"`)

	v, err := out.Parse("```json\n{\"category\":\"bug\",\"priority\":2}\n```")
	require.NoError(t, err)
	assert.Equal(t, ticket{Category: "bug", Priority: 2}, *v)

	_, err = out.Parse(`{"category":"complaint","priority":2}`)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "/category")

	_, err = out.Parse(`{"category":"bug"}`)
	assert.Error(t, err, "priority is required")
}

func TestOutput_GenerateNative(t *testing.T) {
	out, err := NewOutput[ticket]()
	require.NoError(t, err)
	p := &replyProvider{native: true, replies: []string{`{"category":"feature","priority":3}`}}

	gen, err := out.Generate(context.Background(), p, &llm.ChatRequest{
		SystemPrompt: "classify",
		Messages:     []llm.Message{types.NewUserMessage("please add dark mode")},
		Tools:        []llm.ToolSchema{{Name: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "feature", gen.Value.Category)
	assert.Len(t, gen.Messages, 1)
	assert.Equal(t, 1, gen.Attempts)

	require.Len(t, p.requests, 1)
	assert.NotEmpty(t, p.requests[0].ResponseSchema)
	assert.Nil(t, p.requests[0].Tools)
	assert.Equal(t, "classify", p.requests[0].SystemPrompt)
}

func TestOutput_GeneratePromptFallbackRetries(t *testing.T) {
	out, err := NewOutput[ticket]()
	require.NoError(t, err)
	p := &replyProvider{replies: []string{
		"I think it's a bug",
		`{"category":"bug","priority":1,"summary":"crash"}`,
	}}

	gen, err := out.Generate(context.Background(), p, &llm.ChatRequest{
		Messages: []llm.Message{types.NewUserMessage("app crashes on start")},
	})
	require.NoError(t, err)
	assert.Equal(t, "crash", gen.Value.Summary)
	require.Len(t, gen.Messages, 3)
	assert.Equal(t, types.RoleUser, gen.Messages[1].Role)
	assert.Equal(t, 2, gen.Attempts)

	require.Len(t, p.requests, 2)
	assert.Empty(t, p.requests[0].ResponseSchema)
	assert.Contains(t, p.requests[0].SystemPrompt, "JSON Schema")
	assert.Len(t, p.requests[1].Messages, 3)
}

func TestOutput_GenerateGivesUp(t *testing.T) {
	out, err := NewOutput[ticket]()
	require.NoError(t, err)
	p := &replyProvider{replies: []string{"nope"}}

	gen, err := out.Generate(context.Background(), p, &llm.ChatRequest{})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Len(t, p.requests, 2)
	require.Len(t, gen.Messages, 3, "reply, correction, reply; no correction after the last attempt")
	assert.Equal(t, types.RoleAssistant, gen.Messages[0].Role)
	assert.Equal(t, types.RoleUser, gen.Messages[1].Role)
	assert.Equal(t, types.RoleAssistant, gen.Messages[2].Role)
}

func TestOutput_GenerateProviderError(t *testing.T) {
	out, err := NewOutput[ticket]()
	require.NoError(t, err)
	boom := errors.New("boom")

	_, err = out.Generate(context.Background(), &replyProvider{err: boom}, &llm.ChatRequest{})
	assert.ErrorIs(t, err, boom)
}
