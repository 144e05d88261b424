package application

import (
	"context"
	"log/slog"

	"github.com/dukex/canvasblocks/pkg/config"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/triggers"
	"github.com/dukex/canvasblocks/pkg/triggers/queue"
	"github.com/dukex/canvasblocks/pkg/triggers/schedule"
)

const (
	ScheduleTriggerName = "schedule"
	QueueTriggerName    = "queue"
)

// SetupScheduleTrigger builds a cron trigger from the configured schedules. It returns nil
// when none are configured.
func SetupScheduleTrigger(settings config.Settings, logger *slog.Logger) (*schedule.Trigger, error) {
	if len(settings.Schedules) == 0 {
		return nil, nil
	}

	entries := make([]schedule.Entry, 0, len(settings.Schedules))
	for _, s := range settings.Schedules {
		entries = append(entries, schedule.Entry{
			CronExpr: s.Cron,
			Request:  models.RunRequest{CanvasPath: s.Canvas, NodeID: s.NodeID},
		})
	}

	return schedule.NewTrigger(entries, logger)
}

// SetupQueueTrigger connects the Redis queue trigger. It returns nil when no Redis URL is
// configured.
func SetupQueueTrigger(ctx context.Context, settings config.Settings, logger *slog.Logger) (*queue.Trigger, error) {
	if settings.Queue.RedisURL == "" {
		return nil, nil
	}

	name := settings.Queue.Name
	if name == "" {
		name = config.DefaultQueueName
	}

	return queue.NewTrigger(ctx, settings.Queue.RedisURL, name, logger)
}

// SetupTriggers returns every trigger the settings configure, keyed by name.
func SetupTriggers(ctx context.Context, settings config.Settings, logger *slog.Logger) (map[string]triggers.Trigger, error) {
	configured := make(map[string]triggers.Trigger)

	scheduleTrigger, err := SetupScheduleTrigger(settings, logger)
	if err != nil {
		return nil, err
	}

	if scheduleTrigger != nil {
		configured[ScheduleTriggerName] = scheduleTrigger
	}

	queueTrigger, err := SetupQueueTrigger(ctx, settings, logger)
	if err != nil {
		return nil, err
	}

	if queueTrigger != nil {
		configured[QueueTriggerName] = queueTrigger
	}

	return configured, nil
}
