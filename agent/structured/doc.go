/*
Package structured turns model text into typed Go values.

Output[T] reflects a JSON schema from T, builds the instructions that ask a
model for conforming JSON, extracts the JSON from a reply (fenced code
blocks and surrounding prose are tolerated), validates it against the
schema and unmarshals it into T.

Generate drives a provider directly. It uses the provider's native JSON
mode when llm.StructuredOutputProvider reports support and falls back to
prompt instructions otherwise; a reply that fails validation is retried
once with the validation errors fed back to the model.

	out, _ := structured.NewOutput[Ticket]()
	gen, err := out.Generate(ctx, provider, &llm.ChatRequest{
	    Messages: []llm.Message{types.NewUserMessage("Classify: my order never arrived")},
	})
*/
package structured
