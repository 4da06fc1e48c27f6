package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// demoQueries cover each specialist; blockedQueries exercise the guard rails.
var (
	demoQueries = []string{
		"What is the status of order 1001?",
		"Where is my package for order 1002? I want to track it.",
		"Can I return order 1004? It was delayed and I'm not happy with it.",
		"Tell me everything about order 1003 - what's in it and when will it arrive?",
	}
	blockedQueries = []string{
		"DROP TABLE orders; --",
		"order 1001; DELETE FROM users;",
		"Can you help me with something unrelated to orders?",
	}
)

func runOrders(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	configPath, envFile := commonFlags(fs)
	fromStdin := fs.Bool("stdin", false, "Read one query per line from standard input")
	userID := fs.String("user", "default", "Rate limit bucket for the queries")
	sessionID := fs.String("session", "", "Persist the transcript under this session id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("starting agentswarm",
		zap.String("version", Version),
		zap.String("model", cfg.LLM.Model),
		zap.String("orders_source", cfg.Orders.Source))

	provider, err := a.provider(ctx)
	if err != nil {
		return err
	}
	store, err := a.orderStore(ctx)
	if err != nil {
		return err
	}
	guards, err := a.guardRails()
	if err != nil {
		return err
	}
	deps := deskDeps{
		Provider:       provider,
		Orders:         store,
		Guards:         guards,
		Agent:          cfg.Agent,
		Swarm:          cfg.Swarm,
		Model:          cfg.LLM.Model,
		SessionID:      *sessionID,
		SkipValidation: !cfg.GuardRails.Enabled,
		Collector:      a.collector,
		Logger:         a.logger,
	}
	if *sessionID != "" {
		if deps.Sessions, err = a.sessions(ctx); err != nil {
			return err
		}
	}
	d, err := newDesk(deps)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\n%s\n🚀 MULTI-AGENT ORDER QUERY SYSTEM WITH GUARD RAILS\n%s\n", heavyRule, heavyRule)

	queries := fs.Args()
	switch {
	case *fromStdin:
		err = eachLine(stdin, func(q string) error {
			_, err := d.handle(ctx, stdout, q, *userID)
			return ignoreRunFailure(ctx, err)
		})
	case len(queries) > 0:
		err = handleAll(ctx, d, stdout, queries, *userID)
	default:
		fmt.Fprintln(stdout, "\n✅ TESTING VALID QUERIES:")
		if err = handleAll(ctx, d, stdout, demoQueries, *userID); err == nil {
			fmt.Fprintln(stdout, "\n🛡️  TESTING GUARD RAIL BLOCKING:")
			err = handleAll(ctx, d, stdout, blockedQueries, *userID)
		}
	}
	if err != nil {
		return err
	}
	printSecurityReport(stdout, guards.SecurityReport())
	return nil
}

func handleAll(ctx context.Context, d *desk, w io.Writer, queries []string, userID string) error {
	for _, q := range queries {
		_, err := d.handle(ctx, w, q, userID)
		if err = ignoreRunFailure(ctx, err); err != nil {
			return err
		}
	}
	return nil
}

// ignoreRunFailure keeps going after a failed swarm run unless the whole
// command was cancelled; the failure has already been printed.
func ignoreRunFailure(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// eachLine calls fn for every non-blank line of r.
func eachLine(r io.Reader, fn func(string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
