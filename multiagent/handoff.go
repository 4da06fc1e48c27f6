package multiagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/agentswarm/agent"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

// HandoffToolName is the tool every swarm member uses to pass control.
const HandoffToolName = "handoff_to_agent"

var handoffParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"agent_name": {
			"type": "string",
			"description": "Name of the agent to hand off to"
		},
		"message": {
			"type": "string",
			"description": "What the next agent should do"
		},
		"context": {
			"type": "object",
			"description": "Facts to share with the remaining agents"
		}
	},
	"required": ["agent_name", "message"]
}`)

type handoffArgs struct {
	AgentName string         `json:"agent_name"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// swarmRun is the per-invocation state reached by handoff tools through the
// context.
type swarmRun struct {
	mu      sync.Mutex
	current string
	pending *Handoff
	shared  map[string]map[string]any
}

type swarmRunKey struct{}

func withSwarmRun(ctx context.Context, run *swarmRun) context.Context {
	return context.WithValue(ctx, swarmRunKey{}, run)
}

func swarmRunFrom(ctx context.Context) (*swarmRun, bool) {
	run, ok := ctx.Value(swarmRunKey{}).(*swarmRun)
	return run, ok
}

func (r *swarmRun) begin(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = node
	r.pending = nil
}

// request stores h unless the current node already handed off.
func (r *swarmRun) request(h Handoff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		return fmt.Errorf("already handing off to %s", r.pending.To)
	}
	r.pending = &h
	return nil
}

func (r *swarmRun) take() *Handoff {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.pending
	r.pending = nil
	return h
}

func (r *swarmRun) share(from string, kv map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shared == nil {
		r.shared = make(map[string]map[string]any)
	}
	if r.shared[from] == nil {
		r.shared[from] = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		r.shared[from][k] = v
	}
}

func (r *swarmRun) sharedSnapshot() map[string]map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[string]any, len(r.shared))
	for k, v := range r.shared {
		out[k] = v
	}
	return out
}

func (s *Swarm) others(name string) []string {
	out := make([]string, 0, len(s.order)-1)
	for _, n := range s.order {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// handoffTool builds the handoff tool for the member called from.
func (s *Swarm) handoffTool(from string) llmtools.Tool {
	targets := s.others(from)
	desc := "Transfer control to another agent in the swarm. The current agent stops after the handoff."
	if len(targets) > 0 {
		desc += " Available agents: " + strings.Join(targets, ", ") + "."
	}

	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args handoffArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		run, ok := swarmRunFrom(ctx)
		if !ok {
			return nil, errors.New("handoff is only available inside a swarm run")
		}
		switch {
		case args.AgentName == from:
			return nil, fmt.Errorf("agent %s cannot hand off to itself", from)
		case s.nodes[args.AgentName] == nil:
			return nil, fmt.Errorf("agent %q not found in swarm; available agents: %s",
				args.AgentName, strings.Join(targets, ", "))
		}
		if err := run.request(Handoff{
			From:    from,
			To:      args.AgentName,
			Message: args.Message,
			Context: args.Context,
		}); err != nil {
			return nil, err
		}
		agent.RequestStop(ctx)
		return json.Marshal(fmt.Sprintf("Handing off to %s", args.AgentName))
	}
	return llmtools.NewTool(HandoffToolName, desc, handoffParams, fn)
}

// nodeInput renders the prompt for the next node: the handoff message, the
// original request, who worked on it so far, what they shared and who else
// can help.
func (s *Swarm) nodeInput(task, current string, incoming *Handoff, res *SwarmResult, run *swarmRun) string {
	var b strings.Builder
	if incoming != nil {
		fmt.Fprintf(&b, "Handoff message from %s: %s\n\n", incoming.From, incoming.Message)
	}
	fmt.Fprintf(&b, "User request: %s\n", task)

	if len(res.NodeHistory) > 0 {
		fmt.Fprintf(&b, "\nPrevious agents who worked on this: %s\n", strings.Join(res.NodeHistory, " → "))

		b.WriteString("\nOutputs from previous agents:\n")
		seen := map[string]bool{}
		for _, n := range res.NodeHistory {
			if seen[n] {
				continue
			}
			seen[n] = true
			if out := strings.TrimSpace(res.Results[n].Output); out != "" {
				fmt.Fprintf(&b, "• %s: %s\n", n, out)
			}
		}
	}

	if shared := run.sharedSnapshot(); len(shared) > 0 {
		b.WriteString("\nShared knowledge from previous agents:\n")
		names := make([]string, 0, len(shared))
		for n := range shared {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			data, _ := json.Marshal(shared[n])
			fmt.Fprintf(&b, "• %s: %s\n", n, data)
		}
	}

	if others := s.others(current); len(others) > 0 {
		b.WriteString("\nOther agents available for collaboration:\n")
		for _, n := range others {
			if d := s.nodes[n].Description(); d != "" {
				fmt.Fprintf(&b, "- %s: %s\n", n, d)
			} else {
				fmt.Fprintf(&b, "- %s\n", n)
			}
		}
		fmt.Fprintf(&b, "\nUse %s to pass the task on. If you answer without handing off, your answer is final.\n", HandoffToolName)
	}
	return b.String()
}
