// Command agentswarm runs the guard-railed order support swarm.
//
// Usage:
//
//	agentswarm orders                        # run the demo queries
//	agentswarm orders -stdin -user alice     # one query per input line
//	agentswarm orders -session s1 "Where is order 1002?"
//	agentswarm report "DROP TABLE orders"    # guard rails only, no model calls
//	agentswarm version
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/agentswarm/config"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "orders":
		err = runOrders(ctx, args[1:], stdin, stdout)
	case "report":
		err = runReport(ctx, args[1:], stdin, stdout)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (configPath, envFile *string) {
	configPath = fs.String("config", "", "Path to config file")
	envFile = fs.String("env-file", ".env", "Path to a .env file")
	return configPath, envFile
}

func loadConfig(configPath, envFile string) (*config.Config, error) {
	loader := config.NewLoader().WithDotEnv(envFile)
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "agentswarm %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `agentswarm - multi-agent order support

Usage:
  agentswarm <command> [options]

Commands:
  orders    Answer order queries with the support swarm
  report    Run queries through the guard rails and print the security report
  version   Show version information
  help      Show this help message

Options for orders:
  -config <path>     Path to YAML config file
  -env-file <path>   Path to a .env file (default ".env")
  -stdin             Read one query per line from standard input
  -user <id>         Rate limit bucket for the queries (default "default")
  -session <id>      Persist agent conversations under this session id

Environment:
  GEMINI_API_KEY           Gemini API key
  AGENTSWARM_LLM_MODEL     Model name (default gemini-2.5-flash)
  AGENTSWARM_ORDERS_SOURCE csv or sql
`)
}
