// Package calculator is an MCP server with integer arithmetic tools.
package calculator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	Name    = "Calculator Server"
	Version = "1.0.0"
)

type binaryOp func(x, y int) (string, error)

var operandSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"x": {"type": "integer", "description": "First integer operand"},
		"y": {"type": "integer", "description": "Second integer operand"}
	},
	"required": ["x", "y"]
}`)

// New returns a server exposing add, subtract, multiply and divide.
func New() *server.MCPServer {
	s := server.NewMCPServer(Name, Version, server.WithToolCapabilities(false))

	register := func(name, description string, op binaryOp) {
		s.AddTool(mcp.NewToolWithRawSchema(name, description, operandSchema), handler(op))
	}

	register("add", "Add two numbers together", func(x, y int) (string, error) {
		return strconv.Itoa(x + y), nil
	})
	register("subtract", "Subtract one number from another", func(x, y int) (string, error) {
		return strconv.Itoa(x - y), nil
	})
	register("multiply", "Multiply two numbers", func(x, y int) (string, error) {
		return strconv.Itoa(x * y), nil
	})
	register("divide", "Divide one number by another", func(x, y int) (string, error) {
		if y == 0 {
			return "", errDivideByZero
		}
		return strconv.FormatFloat(float64(x)/float64(y), 'f', -1, 64), nil
	})
	return s
}

type calcError string

func (e calcError) Error() string { return string(e) }

const errDivideByZero calcError = "Cannot divide by zero"

func handler(op binaryOp) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		x, err := integerArg(req, "x")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		y, err := integerArg(req, "y")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := op(x, y)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// integerArg reads a whole-number argument. JSON numbers arrive as float64,
// so a fractional value is rejected instead of truncated.
func integerArg(req mcp.CallToolRequest, key string) (int, error) {
	v, err := req.RequireFloat(key)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("argument %q must be an integer, got %v", key, v)
	}
	return int(v), nil
}
