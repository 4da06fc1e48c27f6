// Command calculator-mcp serves the integer calculator tools over MCP stdio.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/BaSui01/agentswarm/mcp/servers/calculator"
)

func main() {
	if err := server.ServeStdio(calculator.New()); err != nil {
		fmt.Fprintf(os.Stderr, "calculator-mcp: %v\n", err)
		os.Exit(1)
	}
}
