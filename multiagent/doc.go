// Package multiagent coordinates several agents on one task.
//
// Three patterns are provided:
//
//   - Swarm: peer agents hand control to each other through the
//     handoff_to_agent tool until one of them answers without handing off.
//   - Graph: nodes connected by conditional edges; after each node the first
//     edge whose condition accepts the state decides what runs next.
//   - Pipeline: a fixed sequence of steps whose prompts are rendered from the
//     original input and the outputs of earlier steps.
//
// All three record node results, token usage and timing, and report to an
// optional metrics collector.
package multiagent
