package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// runReport validates queries with the guard rails only and prints the
// resulting security report. No model is called.
func runReport(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath, envFile := commonFlags(fs)
	fromStdin := fs.Bool("stdin", false, "Read one query per line from standard input")
	userID := fs.String("user", "default", "Rate limit bucket for the queries")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
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

	guards, err := a.guardRails()
	if err != nil {
		return err
	}

	check := func(q string) error {
		ok, msg := guards.ValidateInput(ctx, q, *userID)
		if !*asJSON {
			mark := "✅"
			if !ok {
				mark = "🛡️ "
			}
			fmt.Fprintf(stdout, "%s %s => %s\n", mark, truncate(q, 60), msg)
		}
		return nil
	}

	switch queries := fs.Args(); {
	case *fromStdin:
		err = eachLine(stdin, check)
	case len(queries) > 0:
		for _, q := range queries {
			_ = check(q)
		}
	default:
		for _, q := range append(append([]string{}, demoQueries...), blockedQueries...) {
			_ = check(q)
		}
	}
	if err != nil {
		return err
	}

	report := guards.SecurityReport()
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printSecurityReport(stdout, report)
	return nil
}
