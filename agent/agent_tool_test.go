package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BaSui01/agentswarm/testutil"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentTool_Schema(t *testing.T) {
	researcher := MustNew(mocks.NewMockProvider(), WithName("researcher"), WithDescription("Finds facts"))

	tests := []struct {
		name     string
		cfg      AgentToolConfig
		wantName string
		wantDesc string
	}{
		{name: "defaults", wantName: "agent_researcher", wantDesc: "Finds facts"},
		{name: "overrides", cfg: AgentToolConfig{Name: "consult_researcher", Description: "Ask the researcher"},
			wantName: "consult_researcher", wantDesc: "Ask the researcher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewAgentTool(researcher, tt.cfg)
			assert.Equal(t, tt.wantName, tool.Name())
			assert.Equal(t, tt.wantDesc, tool.Metadata.Schema.Description)

			var schema map[string]any
			require.NoError(t, json.Unmarshal(tool.Metadata.Schema.Parameters, &schema))
			assert.Equal(t, []any{"input"}, schema["required"])
		})
	}

	anonymous := MustNew(mocks.NewMockProvider(), WithName("helper"))
	assert.Equal(t, `Delegate a task to the "helper" agent`, NewAgentTool(anonymous, AgentToolConfig{}).Metadata.Schema.Description)
}

func TestNewAgentTool_Direct(t *testing.T) {
	sub := MustNew(mocks.NewScriptedProvider().QueueText("42", "43"), WithName("math"))
	tool := NewAgentTool(sub, AgentToolConfig{ResetBetweenCalls: true})

	out, err := tool.Func(context.Background(), json.RawMessage(`{"input":"meaning of life?"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"42"`, string(out))

	_, err = tool.Func(context.Background(), json.RawMessage(`{"input":"and again?"}`))
	require.NoError(t, err)
	assert.Len(t, sub.Messages(), 2)

	_, err = tool.Func(context.Background(), json.RawMessage(`{"input":"  "}`))
	assert.ErrorContains(t, err, "missing required field: input")

	_, err = tool.Func(context.Background(), json.RawMessage(`[1]`))
	assert.ErrorContains(t, err, "invalid arguments")
}

func TestNewAgentTool_ConsultedByAnotherAgent(t *testing.T) {
	researcher := MustNew(mocks.NewScriptedProvider().QueueText("Go was released in 2009."),
		WithName("researcher"), WithDescription("Answers research questions"))

	coordinatorLLM := mocks.NewScriptedProvider().
		QueueToolCall("consult_researcher", `{"input":"When was Go released?"}`).
		QueueText("According to research, 2009.")
	coordinator := MustNew(coordinatorLLM, WithName("coordinator"),
		WithTools(NewAgentTool(researcher, AgentToolConfig{Name: "consult_researcher"})))

	res, err := coordinator.Invoke(testutil.TestContext(t), "When was Go released?")
	require.NoError(t, err)
	assert.Equal(t, "According to research, 2009.", res.String())

	toolMsg := coordinatorLLM.LastRequest().Messages[2]
	assert.Equal(t, "Go was released in 2009.", toolMsg.Content)
	assert.Equal(t, 1, res.Metrics.ToolMetrics["consult_researcher"].SuccessCount)
	assert.Len(t, researcher.Messages(), 2)
}

func TestNewAgentTool_SubAgentFailure(t *testing.T) {
	sub := MustNew(mocks.NewScriptedProvider(), WithName("broken"))
	tool := NewAgentTool(sub, AgentToolConfig{})

	_, err := tool.Func(context.Background(), json.RawMessage(`{"input":"hello"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent broken failed")
	assert.ErrorIs(t, err, mocks.ErrNoResponse)
}
