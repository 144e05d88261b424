package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/persistence"
	"github.com/dukex/canvasblocks/pkg/web"
	cli "github.com/urfave/cli/v3"
)

var errUsage = errors.New("missing arguments")

func printJSON(command *cli.Command, v any) error {
	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

// args returns the first n positional arguments, failing when any is missing.
func args(command *cli.Command, n int) ([]string, error) {
	if command.NArg() < n {
		return nil, fmt.Errorf("%w: usage: %s %s", errUsage, command.FullName(), command.ArgsUsage)
	}

	return command.Args().Slice()[:n], nil
}

// withRuntime builds the runtime for one command invocation and closes it afterwards.
func withRuntime(module string, action func(ctx context.Context, command *cli.Command, rt *runtime) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		rt, err := newRuntime(ctx, command, module)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		return action(ctx, command, rt)
	}
}

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run the workflow, or the lone script, at a node of a canvas",
		ArgsUsage: "<canvas> <node-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Force a mode (simple, workflow); by default a workflow runs when the node belongs to one",
			},
		},
		Action: withRuntime("run", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			positional, err := args(command, 2)
			if err != nil {
				return err
			}

			execution, runErr := rt.service.Execute(ctx, models.RunRequest{
				CanvasPath: positional[0],
				NodeID:     positional[1],
				Mode:       models.ExecutionMode(command.String("mode")),
			})
			if execution != nil {
				if err := printJSON(command, execution); err != nil {
					return err
				}
			}

			return runErr
		}),
	}
}

func NewLocateCommand() *cli.Command {
	return &cli.Command{
		Name:      "locate",
		Usage:     "Show the workflow a node belongs to",
		ArgsUsage: "<canvas> <node-id>",
		Action: withRuntime("locate", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			positional, err := args(command, 2)
			if err != nil {
				return err
			}

			nodes, err := rt.service.Locate(ctx, positional[0], positional[1])
			if err != nil {
				return err
			}

			return printJSON(command, web.TransformWorkflowResponse(nodes))
		}),
	}
}

func NewAddScriptCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-script",
		Usage:     "Place a workflow script with its connection points and group on a canvas",
		ArgsUsage: "<canvas> <script>",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "x", Usage: "Left edge of the script node"},
			&cli.FloatFlag{Name: "y", Usage: "Top edge of the script node"},
		},
		Action: withRuntime("add-script", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			positional, err := args(command, 2)
			if err != nil {
				return err
			}

			placement, err := rt.service.AddScript(ctx, positional[0], positional[1], command.Float("x"), command.Float("y"))
			if err != nil {
				return err
			}

			return printJSON(command, placement)
		}),
	}
}

func NewScriptsCommand() *cli.Command {
	return &cli.Command{
		Name:  "scripts",
		Usage: "List the workflow scripts in the configured script folder",
		Action: withRuntime("scripts", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			scripts, err := rt.service.Scripts(ctx)
			if err != nil {
				return err
			}

			for _, script := range scripts {
				fmt.Fprintln(command.Root().Writer, script)
			}

			return nil
		}),
	}
}

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a canvas for malformed blocks and dangling connection points",
		ArgsUsage: "<canvas>",
		Action: withRuntime("validate", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			positional, err := args(command, 1)
			if err != nil {
				return err
			}

			findings, err := rt.service.Check(ctx, positional[0])
			if err != nil {
				return err
			}

			out := command.Root().Writer

			if len(findings) == 0 {
				fmt.Fprintf(out, "%s: OK\n", positional[0])

				return nil
			}

			for _, finding := range findings {
				fmt.Fprintf(out, "%s: node %s: %s\n", positional[0], finding.NodeID, finding.Message)
			}

			return fmt.Errorf("%s: %d problems found", positional[0], len(findings))
		}),
	}
}

func NewRunsCommand() *cli.Command {
	return &cli.Command{
		Name:      "runs",
		Usage:     "List recorded runs, or show one",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "canvas", Usage: "Only runs of this canvas"},
			&cli.StringFlag{Name: "status", Usage: "Only runs with this status (running, success, failed)"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: persistence.DefaultListLimit},
		},
		Action: withRuntime("runs", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			if id := command.Args().First(); id != "" {
				execution, err := rt.service.Execution(ctx, id)
				if err != nil {
					return err
				}

				return printJSON(command, execution)
			}

			runs, err := rt.service.Executions(ctx, persistence.ExecutionFilter{
				CanvasPath: command.String("canvas"),
				Status:     models.ExecutionStatus(command.String("status")),
				Limit:      command.Int("limit"),
			})
			if err != nil {
				return err
			}

			for _, run := range runs {
				fmt.Fprintf(command.Root().Writer, "%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.StartedAt.Format(time.RFC3339), run.Status, run.CanvasPath, run.AnchorID)
			}

			return nil
		}),
	}
}
