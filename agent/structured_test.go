package agent

import (
	"testing"

	"github.com/BaSui01/agentswarm/agent/session"
	"github.com/BaSui01/agentswarm/testutil"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/BaSui01/agentswarm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type personInfo struct {
	Name       string `json:"name" jsonschema:"description=Full name"`
	Age        int    `json:"age" jsonschema:"minimum=0"`
	Occupation string `json:"occupation"`
}

const johnJSON = `{"name":"John Smith","age":30,"occupation":"software engineer"}`

func TestStructuredOutput_Native(t *testing.T) {
	provider := mocks.NewScriptedProvider().WithStructuredOutput(true).QueueText(johnJSON)
	a := MustNew(provider, WithSystemPrompt("Extract people."), WithTools(addTool()))

	p, err := StructuredOutput[personInfo](testutil.TestContext(t), a,
		"John Smith is a 30-year-old software engineer")
	require.NoError(t, err)
	assert.Equal(t, personInfo{Name: "John Smith", Age: 30, Occupation: "software engineer"}, *p)

	req := provider.LastRequest()
	assert.NotEmpty(t, req.ResponseSchema)
	assert.Empty(t, req.Tools)
	assert.Equal(t, "Extract people.", req.SystemPrompt)
}

func TestStructuredOutput_PromptFallback(t *testing.T) {
	provider := mocks.NewScriptedProvider().
		QueueText("Here you go:\n```json\n" + johnJSON + "\n```")
	a := MustNew(provider, WithSystemPrompt("Extract people."))

	res, err := InvokeStructured[personInfo](testutil.TestContext(t), a, "John Smith, 30, engineer")
	require.NoError(t, err)
	p := res.StructuredOutput.(*personInfo)
	assert.Equal(t, "John Smith", p.Name)
	assert.Equal(t, 1, res.Cycles)

	req := provider.LastRequest()
	assert.Empty(t, req.ResponseSchema)
	assert.Contains(t, req.SystemPrompt, "Extract people.")
	assert.Contains(t, req.SystemPrompt, `"occupation"`)
}

func TestStructuredOutput_RetryThenFail(t *testing.T) {
	provider := mocks.NewScriptedProvider().
		QueueText(`{"name":"John","age":-3,"occupation":"x"}`).
		QueueText("I cannot answer in JSON.")
	a := MustNew(provider)

	_, err := StructuredOutput[personInfo](testutil.TestContext(t), a, "John")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structured output")
	assert.Equal(t, 2, provider.CallCount())

	// user prompt, first reply, correction, second reply
	msgs := a.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, types.RoleUser, msgs[2].Role)
	assert.Equal(t, 60, a.Metrics().AccumulatedUsage.TotalTokens)
}

func TestStructuredOutput_UsesConversation(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := session.NewMemoryManager()
	provider := mocks.NewScriptedProvider().
		QueueText("John Smith is an engineer aged 30.").
		QueueText(johnJSON)
	a := MustNew(provider, WithSession(store, "extract"))

	_, err := a.Invoke(ctx, "Tell me about John.")
	require.NoError(t, err)

	p, err := StructuredOutput[personInfo](ctx, a, "")
	require.NoError(t, err)
	assert.Equal(t, 30, p.Age)
	assert.Len(t, provider.LastRequest().Messages, 2)

	stored, err := store.Load(ctx, "extract", "agent")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}
