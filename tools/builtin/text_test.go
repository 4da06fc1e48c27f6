package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/llm"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executorFor(t *testing.T, tools ...llmtools.Tool) *llmtools.DefaultExecutor {
	t.Helper()
	registry := llmtools.NewDefaultRegistry(nil)
	require.NoError(t, llmtools.RegisterAll(registry, tools...))
	return llmtools.NewDefaultExecutor(registry, nil)
}

func call(t *testing.T, exec *llmtools.DefaultExecutor, name, args string) llmtools.ToolResult {
	t.Helper()
	return exec.ExecuteOne(context.Background(), llm.ToolCall{ID: "call_1", Name: name, Arguments: json.RawMessage(args)})
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	exec := executorFor(t, currentTimeTool(func() time.Time { return fixed }))

	tests := []struct {
		name    string
		args    string
		want    string
		wantErr string
	}{
		{name: "default utc", args: `{}`, want: "2025-03-01T12:30:00Z"},
		{name: "explicit zone", args: `{"timezone":"Asia/Tokyo"}`, want: "2025-03-01T21:30:00+09:00"},
		{name: "unknown zone", args: `{"timezone":"Mars/Olympus"}`, wantErr: `unknown timezone "Mars/Olympus"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, exec, "current_time", tt.args)
			if tt.wantErr != "" {
				assert.Contains(t, res.Error, tt.wantErr)
				return
			}
			require.Empty(t, res.Error)
			assert.Equal(t, tt.want, res.Text())
		})
	}
}

func TestTextTools(t *testing.T) {
	exec := executorFor(t, WordCount(), Uppercase())

	res := call(t, exec, "word_count", `{"text":"  how many words are   in this\tsentence "}`)
	require.Empty(t, res.Error)
	assert.Equal(t, "7", res.Text())

	res = call(t, exec, "word_count", `{"text":""}`)
	assert.Equal(t, "0", res.Text())

	res = call(t, exec, "uppercase", `{"text":"hello, world"}`)
	assert.Equal(t, "HELLO, WORLD", res.Text())
}

func TestTeamMembers(t *testing.T) {
	exec := executorFor(t, TeamMembers())
	res := call(t, exec, "get_team_members", `{}`)
	require.Empty(t, res.Error)
	assert.JSONEq(t, `["Alice","Bob","Charlie","Diana"]`, string(res.Result))

	custom := executorFor(t, TeamMembers("Eve"))
	assert.JSONEq(t, `["Eve"]`, string(call(t, custom, "get_team_members", `{}`).Result))
}

func TestBasic(t *testing.T) {
	names := make([]string, 0, 4)
	for _, tool := range Basic() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"calculator", "current_time", "word_count", "uppercase"}, names)
}
