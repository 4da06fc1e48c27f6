// Package mcp connects agents to Model Context Protocol servers.
//
// A Client wraps a mark3labs/mcp-go client, either over stdio to a child
// process or in-process against a *server.MCPServer, and exposes the
// server's tools as llm/tools.Tool values whose executions proxy through
// the protocol. Servers live under mcp/servers.
package mcp
