// Command order-mcp serves the order lookup tools over MCP stdio.
//
// Configuration is read like agentswarm's: -config, .env and AGENTSWARM_*
// variables. Logs always go to stderr since stdout carries the protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentswarm/agent/guardrails"
	"github.com/BaSui01/agentswarm/config"
	orderserver "github.com/BaSui01/agentswarm/mcp/servers/orders"
	"github.com/BaSui01/agentswarm/orders"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "order-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env-file", ".env", "Path to a .env file")
	csvPath := flag.String("csv", "", "Orders CSV file; overrides orders.csv_path")
	sanitize := flag.Bool("sanitize", true, "Mask PII in tool results")
	flag.Parse()

	loader := config.NewLoader().WithDotEnv(*envFile)
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if *csvPath != "" {
		cfg.Orders.CSVPath = *csvPath
	}

	logger, err := newStderrLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	store, closeStore, err := orders.OpenStore(ctx, cfg.Orders, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	opts := []orders.ServiceOption{orders.WithLogger(logger)}
	if *sanitize {
		guards, err := guardrails.New(guardrails.DefaultConfig(), guardrails.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, orders.WithSanitizer(guards))
	}
	svc := orders.NewService(store, opts...)

	logger.Info("order MCP server starting",
		zap.String("source", cfg.Orders.Source),
		zap.String("csv_path", cfg.Orders.CSVPath))
	return server.ServeStdio(orderserver.New(svc, logger))
}

func newStderrLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
