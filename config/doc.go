// Package config loads agentswarm configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed AGENTSWARM_ (after loading any .env file).
// GEMINI_API_KEY is accepted as an alias for AGENTSWARM_LLM_API_KEY.
package config
