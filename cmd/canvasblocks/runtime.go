package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/canvasblocks/internal/application"
	"github.com/dukex/canvasblocks/pkg/cmd"
	"github.com/dukex/canvasblocks/pkg/config"
	"github.com/dukex/canvasblocks/pkg/eventbus"
	"github.com/dukex/canvasblocks/pkg/log"
	"github.com/dukex/canvasblocks/pkg/otelhelper"
	"github.com/dukex/canvasblocks/pkg/persistence"
	"github.com/dukex/canvasblocks/pkg/vault"
	cli "github.com/urfave/cli/v3"
)

// runtime holds everything a command needs to run canvases.
type runtime struct {
	settings    config.Settings
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	service     *application.Service
	shutdown    otelhelper.ShutdownFunc
}

func newRuntime(ctx context.Context, command *cli.Command, module string) (*runtime, error) {
	log.Setup(command.String("log-level"))

	logger := log.WithModule(module)

	settings, err := loadSettings(command)
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	v, err := vault.NewLocal(settings.VaultPath)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		settings: settings,
		logger:   logger,
		shutdown: func(context.Context) error { return nil },
	}

	rt.persistence, err = cmd.NewPersistence(ctx, logger, settings.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	rt.eventBus, err = cmd.NewEventBus(settings.EventBus, settings.KafkaBrokers, logger)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	tracer := otelhelper.NoopTracer()

	if command.Bool("tracing") {
		tracer, rt.shutdown, err = otelhelper.NewTracer(ctx, "canvasblocks")
		if err != nil {
			rt.Close(ctx)

			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	rt.service, err = application.NewService(v, rt.persistence.Executions(), settings, logger,
		application.WithPublisher(rt.eventBus),
		application.WithTracer(tracer),
	)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	return rt, nil
}

// Close releases the event bus, the run history and the tracer.
func (rt *runtime) Close(ctx context.Context) {
	var errs []error

	if rt.eventBus != nil {
		errs = append(errs, rt.eventBus.Close())
	}

	if rt.persistence != nil {
		errs = append(errs, rt.persistence.Close(ctx))
	}

	errs = append(errs, rt.shutdown(ctx))

	if err := errors.Join(errs...); err != nil {
		rt.logger.ErrorContext(ctx, "Failed to shut down cleanly", "error", err)
	}
}
