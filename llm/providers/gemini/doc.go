// Copyright 2026 AgentSwarm Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package gemini adapts the Google Gemini API to llm.Provider using the
official google.golang.org/genai SDK.

  - New(ctx, cfg, logger) builds a client against the Gemini Developer API;
    the default model is gemini-2.5-flash at temperature 0.7.
  - System messages become SystemInstruction, assistant turns use the
    "model" role, tool calls map to FunctionCall parts and tool results to
    FunctionResponse parts.
  - JSON schemas from tools and structured output are translated to
    genai.Schema.
  - API errors are mapped to types.Error codes (401/403 unauthorized, 429
    rate limited, 5xx upstream) with retryable flags.
*/
package gemini
