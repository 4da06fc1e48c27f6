/*
Package types holds the value types shared by every other package: chat
messages, tool calls and results, token usage and the structured Error.

It imports nothing from the rest of the module so that llm, agent,
multiagent and mcp can all depend on it without cycles.
*/
package types
