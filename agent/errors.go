package agent

import "errors"

var (
	// ErrProviderNotSet is returned by New without a provider.
	ErrProviderNotSet = errors.New("llm provider not set")

	// ErrMaxCyclesExceeded is returned when the model keeps calling tools
	// past the configured cycle limit.
	ErrMaxCyclesExceeded = errors.New("max event loop cycles exceeded")

	// ErrEmptyPrompt is returned by Invoke for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrEmptyResponse is returned when the model produces no choice.
	ErrEmptyResponse = errors.New("model returned no choices")
)
