package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/canvasblocks/internal/application"
	"github.com/dukex/canvasblocks/pkg/config"
	"github.com/dukex/canvasblocks/pkg/events"
	"github.com/dukex/canvasblocks/pkg/log"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/triggers/queue"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the run API over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: withRuntime("api", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := logRunEvents(ctx, rt); err != nil {
				return err
			}

			app := NewAPI(rt.logger, rt.service, rt.persistence).App()

			errCh := make(chan error, 1)

			go func() {
				errCh <- app.Listen(fmt.Sprintf(":%d", command.Int("port")))
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				rt.logger.Info("Shutting down API server")

				return app.Shutdown()
			}
		}),
	}
}

func NewWorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run canvases from the configured cron schedules and Redis queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		},
		Action: withRuntime("worker", func(ctx context.Context, command *cli.Command, rt *runtime) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			if err := logRunEvents(ctx, rt); err != nil {
				return err
			}

			configured, err := application.SetupTriggers(ctx, rt.settings, rt.logger)
			if err != nil {
				return err
			}

			if len(configured) == 0 {
				return errors.New("no triggers configured: add schedules or a queue redis_url to the settings file")
			}

			manager := application.NewWorkerManager(workerID, rt.service, rt.logger)

			for name, trigger := range configured {
				if err := manager.Start(ctx, name, trigger); err != nil {
					_ = manager.Stop(context.WithoutCancel(ctx))

					return err
				}
			}

			rt.logger.InfoContext(ctx, "Worker started", "worker_id", workerID, "triggers", manager.Running())

			<-ctx.Done()

			rt.logger.Info("Shutting down worker", "worker_id", workerID)

			return manager.Stop(context.WithoutCancel(ctx))
		}),
	}
}

func NewEnqueueCommand() *cli.Command {
	return &cli.Command{
		Name:      "enqueue",
		Usage:     "Push a run request onto the Redis queue a worker consumes",
		ArgsUsage: "<canvas> <node-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			positional, err := args(command, 2)
			if err != nil {
				return err
			}

			settings, err := loadSettings(command)
			if err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			if settings.Queue.RedisURL == "" {
				return errors.New("queue redis_url is not configured")
			}

			options, err := redis.ParseURL(settings.Queue.RedisURL)
			if err != nil {
				return fmt.Errorf("invalid redis url: %w", err)
			}

			name := settings.Queue.Name
			if name == "" {
				name = config.DefaultQueueName
			}

			client := redis.NewClient(options)
			defer func() { _ = client.Close() }()

			return queue.Enqueue(ctx, client, name, models.RunRequest{
				CanvasPath: positional[0],
				NodeID:     positional[1],
			})
		},
	}
}

// logRunEvents logs the outcome of every run published on the event bus.
func logRunEvents(ctx context.Context, rt *runtime) error {
	logger := log.WithModule("events")

	if err := rt.eventBus.Handle(events.RunFinishedEvent, func(ctx context.Context, event any) error {
		if finished, ok := event.(*events.RunFinished); ok {
			logger.InfoContext(ctx, "Run finished", "execution_id", finished.ExecutionID,
				"canvas", finished.CanvasPath, "executed", finished.Executed, "duration", finished.Duration)
		}

		return nil
	}); err != nil {
		return err
	}

	if err := rt.eventBus.Handle(events.RunFailedEvent, func(ctx context.Context, event any) error {
		if failed, ok := event.(*events.RunFailed); ok {
			logger.WarnContext(ctx, "Run failed", "execution_id", failed.ExecutionID,
				"canvas", failed.CanvasPath, "failed_script_id", failed.FailedScriptID, "error", failed.Error)
		}

		return nil
	}); err != nil {
		return err
	}

	return rt.eventBus.Subscribe(ctx)
}
