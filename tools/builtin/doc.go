// Package builtin provides ready-made agent tools: an arithmetic
// expression calculator, the current time, word counting, uppercasing,
// file access confined to a base directory, a DuckDuckGo web search and a
// team roster lookup.
//
// Every constructor returns an llm/tools.Tool, so tools can be passed to
// agent.WithTools or registered directly:
//
//	a := agent.MustNew(provider, agent.WithTools(builtin.Calculator(), builtin.CurrentTime()))
package builtin
