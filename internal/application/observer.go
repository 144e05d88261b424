package application

import (
	"context"
	"time"

	"github.com/dukex/canvasblocks/pkg/events"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// runObserver opens a span and publishes script events for every script of one run.
// Scripts of a run execute one at a time.
type runObserver struct {
	service   *Service
	execution *models.Execution
	started   map[string]time.Time
}

func (o *runObserver) ScriptStarted(ctx context.Context, script models.Node) context.Context {
	o.started[script.ID] = time.Now()

	ctx, _ = otelhelper.StartSpan(ctx, o.service.tracer, "canvasblocks.script",
		attribute.String(otelhelper.ExecutionIDKey, o.execution.ID),
		attribute.String(otelhelper.ScriptIDKey, script.ID),
	)

	o.service.publish(ctx, o.execution.ID, events.ScriptStarted{
		BaseEvent: events.NewBaseEvent(events.ScriptStartedEvent, o.execution.ID, o.execution.CanvasPath),
		ScriptID:  script.ID,
	})

	return ctx
}

func (o *runObserver) ScriptFinished(ctx context.Context, script models.Node, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	duration := time.Since(o.started[script.ID])
	delete(o.started, script.ID)

	if err != nil {
		otelhelper.Fail(span, err, attribute.String(otelhelper.ScriptIDKey, script.ID))

		o.service.publish(ctx, o.execution.ID, events.ScriptFailed{
			BaseEvent: events.NewBaseEvent(events.ScriptFailedEvent, o.execution.ID, o.execution.CanvasPath),
			ScriptID:  script.ID,
			Error:     err.Error(),
			Duration:  duration,
		})

		return
	}

	o.service.publish(ctx, o.execution.ID, events.ScriptFinished{
		BaseEvent: events.NewBaseEvent(events.ScriptFinishedEvent, o.execution.ID, o.execution.CanvasPath),
		ScriptID:  script.ID,
		Duration:  duration,
	})
}
