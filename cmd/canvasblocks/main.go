// Package main provides the canvasblocks command line: run canvas workflows, inspect them,
// and serve runs over HTTP, cron schedules and a Redis queue.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "canvasblocks",
		Usage:                 "Run scripts wired together on JSON Canvas documents",
		EnableShellCompletion: true,
		Flags:                 globalFlags(),
		Commands: []*cli.Command{
			NewRunCommand(),
			NewLocateCommand(),
			NewAddScriptCommand(),
			NewScriptsCommand(),
			NewValidateCommand(),
			NewRunsCommand(),
			NewServeCommand(),
			NewWorkerCommand(),
			NewEnqueueCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Settings file (.toml, .yaml or .yml)",
			Sources: cli.EnvVars("CANVASBLOCKS_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "vault",
			Usage:   "Vault directory canvas and script paths are relative to",
			Sources: cli.EnvVars("VAULT_PATH"),
		},
		&cli.StringFlag{
			Name:    "python",
			Usage:   "Python interpreter used for python blocks",
			Sources: cli.EnvVars("PYTHON_PATH"),
		},
		&cli.StringFlag{
			Name:    "ordering",
			Usage:   "Script ordering (reverse-discovery, topological)",
			Sources: cli.EnvVars("CANVASBLOCKS_ORDERING"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Run history store URL (file://, postgres://, redis://)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export spans over OTLP/HTTP (configured by OTEL_EXPORTER_OTLP_* variables)",
			Sources: cli.EnvVars("CANVASBLOCKS_TRACING"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}
