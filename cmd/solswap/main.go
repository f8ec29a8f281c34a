package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solswap",
		Usage: "Buy and sell Solana tokens through the Jupiter aggregator",
		Description: `An interactive command-line trader for Solana tokens.

Run without a subcommand to start the interactive buy/sell menu. Configuration
is read from the environment (SOLANA_RPC_URL is required) and can be
overridden with the global flags below.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Action:  tradeAction,
		Commands: []*cli.Command{
			tradeCommand(),
			balanceCommand(),
			quoteCommand(),
			historyCommand(),
			eventsCommand(),
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL (comma-separated for several endpoints)",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "jupiter-url",
				Usage:   "Jupiter quote/swap API base URL",
				EnvVars: []string{"JUPITER_API_URL"},
			},
			&cli.StringFlag{
				Name:    "relay-url",
				Usage:   "Jupiter transaction relay URL",
				EnvVars: []string{"JUPITER_RELAY_URL"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for the trade journal",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL for trade events",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Address to serve Prometheus metrics on (e.g. :9091)",
				EnvVars: []string{"METRICS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "solswap %s\n", c.App.Version)
			return nil
		},
	}
}

func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
