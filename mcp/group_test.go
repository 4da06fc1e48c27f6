package mcp

import (
	"context"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentswarm/mcp/servers/calculator"
)

func echoServer() *server.MCPServer {
	s := server.NewMCPServer("echo", "0.1.0", server.WithToolCapabilities(false))
	s.AddTool(mcpgo.NewTool("echo",
		mcpgo.WithDescription("Echo the text back"),
		mcpgo.WithString("text", mcpgo.Required()),
	), func(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return mcpgo.NewToolResultText(text), nil
	})
	return s
}

func inProcess(t *testing.T, srv *server.MCPServer, name string) *Client {
	t.Helper()
	c, err := NewInProcessClient(srv, WithName(name))
	require.NoError(t, err)
	return c
}

func TestGroup_StartsAndMergesTools(t *testing.T) {
	g := NewGroup(inProcess(t, calculator.New(), "calculator"), inProcess(t, echoServer(), "echo"))
	t.Cleanup(func() { _ = g.Close() })

	require.NoError(t, g.Start(context.Background(), time.Second))
	tools, err := g.Tools(context.Background())
	require.NoError(t, err)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name()
	}
	assert.ElementsMatch(t, []string{"add", "subtract", "multiply", "divide", "echo"}, names)
	assert.Len(t, g.Clients(), 2)
}

func TestGroup_DuplicateToolNames(t *testing.T) {
	g := NewGroup(inProcess(t, calculator.New(), "a"), inProcess(t, calculator.New(), "b"))
	t.Cleanup(func() { _ = g.Close() })

	require.NoError(t, g.Start(context.Background(), 0))
	_, err := g.Tools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exposed by both a and b")
}

func TestGroup_StartFailureNamesServer(t *testing.T) {
	broken := inProcess(t, echoServer(), "broken")
	require.NoError(t, broken.Close())

	g := NewGroup(inProcess(t, calculator.New(), "calculator"), broken)
	t.Cleanup(func() { _ = g.Close() })

	err := g.Start(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp server broken")
}
