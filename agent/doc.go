/*
Package agent implements a tool-using LLM agent.

An Agent owns a system prompt, a tool registry and a conversation. Invoke
appends the user prompt and runs the event loop:

	model call -> tool calls executed concurrently -> model call -> ...

until the model answers without requesting tools, a tool calls RequestStop,
or MaxCycles is reached. Tool failures are returned to the model as tool
results instead of aborting the loop.

# Construction

	a, err := agent.New(provider,
	    agent.WithName("order_lookup"),
	    agent.WithSystemPrompt(prompt),
	    agent.WithTools(orderTools...),
	    agent.WithSession(sessions, "user-42"),
	)

# Composition

NewAgentTool exposes an agent as a tool so another agent can consult it.
StructuredOutput decodes a reply into a Go type validated against the
type's JSON schema.

# Metrics

Every invocation updates EventLoopMetrics (cycles, token usage, per-tool
statistics). Result.Metrics carries a snapshot and Summary renders it as a
map. WithMetrics additionally exports Prometheus counters.
*/
package agent
