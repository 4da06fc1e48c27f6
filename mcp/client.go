package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	clientName    = "agentswarm"
	clientVersion = "1.0.0"
)

// ErrNotStarted is returned when a call is made before Start.
var ErrNotStarted = errors.New("mcp client not started")

// Client is a single MCP server connection.
type Client struct {
	name   string
	inner  *client.Client
	logger *zap.Logger

	// Stdio clients are spawned on construction; in-process ones need
	// the transport started explicitly.
	needsTransportStart bool

	mu         sync.Mutex
	started    bool
	closed     bool
	serverInfo mcpgo.Implementation
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithName labels the connection in logs and tool errors.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// NewStdioClient launches command with args and talks MCP over its
// stdin and stdout. env entries are KEY=VALUE pairs added to the child.
func NewStdioClient(command string, env []string, args []string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("mcp: empty command")
	}
	inner, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio client: %w", err)
	}
	return newClient(inner, false, append([]Option{WithName(command)}, opts...)), nil
}

// NewInProcessClient connects to srv within the current process.
func NewInProcessClient(srv *server.MCPServer, opts ...Option) (*Client, error) {
	if srv == nil {
		return nil, errors.New("mcp: nil server")
	}
	inner, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-process client: %w", err)
	}
	return newClient(inner, true, append([]Option{WithName("in-process")}, opts...)), nil
}

func newClient(inner *client.Client, needsStart bool, opts []Option) *Client {
	c := &Client{inner: inner, needsTransportStart: needsStart, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "mcp_client"), zap.String("server", c.name))
	return c
}

func (c *Client) Name() string { return c.name }

// Start performs the MCP initialize handshake. Calling it again is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("mcp client closed")
	}
	if c.started {
		return nil
	}
	if c.needsTransportStart {
		if err := c.inner.Start(ctx); err != nil {
			return fmt.Errorf("start transport: %w", err)
		}
	}

	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{Name: clientName, Version: clientVersion}
	req.Params.Capabilities = mcpgo.ClientCapabilities{}

	res, err := c.inner.Initialize(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	c.serverInfo = res.ServerInfo
	c.started = true
	c.logger.Info("mcp server connected",
		zap.String("server_name", res.ServerInfo.Name),
		zap.String("server_version", res.ServerInfo.Version),
		zap.String("protocol", res.ProtocolVersion))
	return nil
}

// ServerInfo reports the name and version from the initialize handshake.
func (c *Client) ServerInfo() mcpgo.Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("mcp client closed")
	}
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

func (c *Client) ListTools(ctx context.Context) ([]mcpgo.Tool, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	res, err := c.inner.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return res.Tools, nil
}

// CallTool invokes a tool. A result with IsError set is returned as is;
// only transport and protocol failures produce an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcpgo.CallToolResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.inner.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}
	return res, nil
}

// Tools wraps every server tool as an agent tool.
func (c *Client) Tools(ctx context.Context) ([]llmtools.Tool, error) {
	list, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]llmtools.Tool, 0, len(list))
	for _, t := range list {
		params, err := inputSchema(t)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		out = append(out, llmtools.NewTool(t.Name, t.Description, params, c.proxy(t.Name)))
	}
	return out, nil
}

func (c *Client) proxy(name string) llmtools.ToolFunc {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args map[string]any
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
		}
		res, err := c.CallTool(ctx, name, args)
		if err != nil {
			return nil, err
		}
		text := ResultText(res)
		if res.IsError {
			c.logger.Debug("mcp tool returned error", zap.String("tool", name), zap.String("error", text))
			return nil, errors.New(text)
		}
		return json.Marshal(text)
	}
}

// Close shuts the connection down; a stdio server process is stopped.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close()
}

// ResultText concatenates the text content of res.
func ResultText(res *mcpgo.CallToolResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	for _, content := range res.Content {
		switch tc := content.(type) {
		case mcpgo.TextContent:
			b.WriteString(tc.Text)
		case *mcpgo.TextContent:
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func inputSchema(t mcpgo.Tool) (json.RawMessage, error) {
	if len(t.RawInputSchema) > 0 {
		return t.RawInputSchema, nil
	}
	in := t.InputSchema
	schema := map[string]any{"type": in.Type, "properties": in.Properties}
	if in.Type == "" {
		schema["type"] = "object"
	}
	if in.Properties == nil {
		schema["properties"] = map[string]any{}
	}
	if len(in.Required) > 0 {
		schema["required"] = in.Required
	}
	return json.Marshal(schema)
}
