package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

// AgentToolConfig configures how an Agent is exposed as a tool.
type AgentToolConfig struct {
	// Name overrides the default tool name (default: "agent_<agent name>").
	Name string

	// Description overrides the agent's description in the tool schema.
	Description string

	// Timeout limits the agent execution time. Zero means the executor default.
	Timeout time.Duration

	// ResetBetweenCalls clears the wrapped agent's conversation before each call.
	ResetBetweenCalls bool
}

var agentToolParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"input": {
			"type": "string",
			"description": "The task or question for the agent"
		}
	},
	"required": ["input"]
}`)

type agentToolArgs struct {
	Input string `json:"input"`
}

// NewAgentTool wraps a as a tool taking {"input": "..."} and returning the
// agent's final text. This lets one agent consult another.
func NewAgentTool(a *Agent, cfg AgentToolConfig) llmtools.Tool {
	name := cfg.Name
	if name == "" {
		name = "agent_" + a.Name()
	}
	desc := cfg.Description
	if desc == "" {
		desc = a.Description()
	}
	if desc == "" {
		desc = fmt.Sprintf("Delegate a task to the %q agent", a.Name())
	}

	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args agentToolArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(args.Input) == "" {
			return nil, errors.New("missing required field: input")
		}
		if cfg.ResetBetweenCalls {
			a.ResetConversation()
		}
		res, err := a.Invoke(ctx, args.Input)
		if err != nil {
			return nil, fmt.Errorf("agent %s failed: %w", a.Name(), err)
		}
		return json.Marshal(res.String())
	}

	tool := llmtools.NewTool(name, desc, agentToolParams, fn)
	if cfg.Timeout > 0 {
		tool = tool.WithTimeout(cfg.Timeout)
	}
	return tool
}
