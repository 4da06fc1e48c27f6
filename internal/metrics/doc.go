/*
Package metrics provides Prometheus metrics for the agent runtime.

# Overview

Collector owns a private prometheus.Registry so several collectors (one per
test, one per binary) never collide on registration. Every Record method is
safe on a nil *Collector, so components take an optional collector without
guarding each call.

# Metric families

  - LLM: request count, latency, input/output tokens by provider and model.
  - Agent: invocation count, latency and event loop cycles by agent.
  - Tools: call count by outcome and latency by tool.
  - Guard rails: rejections by reason.
  - Multi-agent: swarm handoffs, run outcomes, graph node executions.
*/
package metrics
