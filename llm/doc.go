/*
Package llm defines the provider-neutral model API used by agents.

A Provider turns a ChatRequest (system prompt, messages, tool schemas and an
optional response schema) into a ChatResponse. Message, ToolCall and
ToolSchema are aliases of the types package so that agents, tools and
providers share one vocabulary.

Backends live under llm/providers. Cross-cutting wrappers such as
retry.WrapProvider return another Provider, so they compose freely:

	p, err := gemini.New(ctx, gemini.Config{APIKey: key}, logger)
	if err != nil {
		return err
	}
	provider := retry.WrapProvider(p, retry.DefaultPolicy(), logger)

Errors returned by providers are *types.Error values. ErrorFromStatus maps
HTTP status codes onto error codes and marks rate limits and unavailable
upstreams as retryable.
*/
package llm
