package multiagent

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/agentswarm/agent"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_AgentToAgent(t *testing.T) {
	p := mocks.NewScriptedProvider().QueueText(
		"Plan: research then analyse",
		"RESEARCH RESULTS: fact 1",
		"ANALYSIS: recommend X",
		"Final: adopt X",
	)
	coordinator := agent.MustNew(p, agent.WithName("coordinator"))
	researcher := agent.MustNew(p, agent.WithName("researcher"))
	analyst := agent.MustNew(p, agent.WithName("analyst"))

	pipe, err := NewPipeline(
		PipelineStep{Name: "plan", Executor: AgentExecutor(coordinator)},
		PipelineStep{Name: "research", Executor: AgentExecutor(researcher),
			Prompt: "Research this topic and provide key facts: {{input}}"},
		PipelineStep{Name: "analysis", Executor: AgentExecutor(analyst),
			Prompt: "Based on this research: {{research}}\n\nProvide analysis and recommendations."},
		PipelineStep{Name: "synthesis", Executor: AgentExecutor(coordinator),
			Prompt: "RESEARCH: {{ research }}\n\nANALYSIS: {{analysis}}\n\nFinal answer:"},
	)
	require.NoError(t, err)

	res, err := pipe.Run(context.Background(), "Why use agent frameworks?")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"plan", "research", "analysis", "synthesis"}, res.Order)
	assert.Equal(t, "Final: adopt X", res.Output)

	calls := p.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "Why use agent frameworks?", calls[0].Request.Messages[0].Content)
	assert.Equal(t, "Research this topic and provide key facts: Why use agent frameworks?", calls[1].Request.Messages[0].Content)
	assert.Equal(t, "Based on this research: RESEARCH RESULTS: fact 1\n\nProvide analysis and recommendations.", calls[2].Request.Messages[0].Content)
	assert.Equal(t, "RESEARCH: RESEARCH RESULTS: fact 1\n\nANALYSIS: ANALYSIS: recommend X\n\nFinal answer:", calls[3].Request.Messages[0].Content)
}

func TestPipeline_EmptyPromptPassesPreviousOutput(t *testing.T) {
	upper := &recorder{reply: "STEP ONE"}
	second := &recorder{reply: "done"}
	pipe, err := NewPipeline(
		PipelineStep{Name: "one", Executor: upper},
		PipelineStep{Name: "two", Executor: second},
	)
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(), "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, upper.inputs)
	assert.Equal(t, []string{"STEP ONE"}, second.inputs)
}

func TestPipeline_FailureStops(t *testing.T) {
	boom := errors.New("down")
	last := &recorder{reply: "never"}
	pipe, err := NewPipeline(
		PipelineStep{Name: "ok", Executor: &recorder{reply: "fine"}},
		PipelineStep{Name: "bad", Executor: ExecutorFunc(func(context.Context, string) (string, error) { return "", boom })},
		PipelineStep{Name: "last", Executor: last},
	)
	require.NoError(t, err)

	res, err := pipe.Run(context.Background(), "go")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"ok", "bad"}, res.Order)
	assert.Equal(t, "fine", res.Output)
	assert.Empty(t, last.inputs)

	_, err = pipe.Run(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyTask)
}

func TestNewPipeline_Validation(t *testing.T) {
	noop := &recorder{}
	tests := []struct {
		name    string
		steps   []PipelineStep
		wantErr string
	}{
		{name: "no steps", wantErr: "no nodes configured"},
		{name: "blank name", steps: []PipelineStep{{Executor: noop}}, wantErr: `invalid name ""`},
		{name: "reserved name", steps: []PipelineStep{{Name: "input", Executor: noop}}, wantErr: `invalid name "input"`},
		{name: "duplicate", steps: []PipelineStep{{Name: "a", Executor: noop}, {Name: "a", Executor: noop}}, wantErr: "duplicate node: a"},
		{name: "nil executor", steps: []PipelineStep{{Name: "a"}}, wantErr: "step a has no executor"},
		{name: "forward reference", steps: []PipelineStep{
			{Name: "a", Executor: noop, Prompt: "{{b}}"},
			{Name: "b", Executor: noop},
		}, wantErr: `step a references unknown or later step "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.steps...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRender(t *testing.T) {
	out := render("{{input}} / {{ a }} / {{missing}}", map[string]string{"input": "x", "a": "y"})
	assert.Equal(t, "x / y / ", out)
}
