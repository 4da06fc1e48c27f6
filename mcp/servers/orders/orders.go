// Package orders is an MCP server answering order lookups from an
// orders.Service. Unknown ids yield {"error":"Order <id> not found"}.
package orders

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/BaSui01/agentswarm/orders"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	Name    = "Order Server"
	Version = "1.0.0"
)

// New registers every order tool from the catalog on a fresh server.
func New(svc *orders.Service, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "order_mcp"))
	s := server.NewMCPServer(Name, Version, server.WithToolCapabilities(false), server.WithRecovery())

	for _, info := range orders.Catalog() {
		if info.ByEmail {
			s.AddTool(mcp.NewTool(info.Name,
				mcp.WithDescription(info.Description),
				mcp.WithString("email", mcp.Required(), mcp.Description("The customer email address")),
			), byEmailHandler(svc, logger))
			continue
		}
		s.AddTool(mcp.NewTool(info.Name,
			mcp.WithDescription(info.Description),
			mcp.WithString("order_id", mcp.Required(), mcp.Description("The order ID to look up")),
		), byIDHandler(svc, info.Name, logger))
	}
	return s
}

type errorBody struct {
	Error string `json:"error"`
}

func byIDHandler(svc *orders.Service, tool string, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("order_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v, err := svc.Lookup(ctx, tool, id)
		if errors.Is(err, orders.ErrNotFound) {
			b, _ := json.Marshal(errorBody{Error: orders.NotFoundMessage(id)})
			return mcp.NewToolResultText(string(b)), nil
		}
		if err != nil {
			logger.Error("order lookup failed", zap.String("tool", tool), zap.String("order_id", id), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}
		return render(svc, v)
	}
}

func byEmailHandler(svc *orders.Service, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v, err := svc.LookupByEmail(ctx, email)
		if err != nil {
			logger.Error("order lookup by email failed", zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}
		return render(svc, v)
	}
}

func render(svc *orders.Service, v any) (*mcp.CallToolResult, error) {
	text, err := svc.Render(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}
