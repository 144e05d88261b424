// Package schedule runs canvas workflows on cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/triggers"
	"github.com/robfig/cron/v3"
)

// Entry pairs a cron expression with the run it starts.
type Entry struct {
	CronExpr string
	Request  models.RunRequest
}

func (e Entry) Validate() error {
	if e.CronExpr == "" {
		return errors.New("schedule cron expression is required")
	}

	if e.Request.CanvasPath == "" || e.Request.NodeID == "" {
		return errors.New("schedule canvas and node id are required")
	}

	if _, err := cron.ParseStandard(e.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Trigger fires every entry on its own schedule. A run still in progress when its next
// tick arrives makes that tick skip.
type Trigger struct {
	Entries []Entry

	cron     *cron.Cron
	callback triggers.Callback
	logger   *slog.Logger
}

func NewTrigger(entries []Entry, logger *slog.Logger) (*Trigger, error) {
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
	}

	return &Trigger{
		Entries: entries,
		logger:  logger.With("module", "schedule_trigger"),
	}, nil
}

func (t *Trigger) Start(ctx context.Context, callback triggers.Callback) error {
	t.logger.InfoContext(ctx, "Starting schedule trigger", "entries", len(t.Entries))
	t.callback = callback

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(t.logger.Handler(), slog.LevelDebug))

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	for _, entry := range t.Entries {
		id, err := t.cron.AddFunc(entry.CronExpr, func() { t.run(ctx, entry) })
		if err != nil {
			return fmt.Errorf("failed to add cron job %q: %w", entry.CronExpr, err)
		}

		t.logger.InfoContext(ctx, "Added cron job", "id", id, "cron", entry.CronExpr,
			"canvas", entry.Request.CanvasPath, "node_id", entry.Request.NodeID)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) run(ctx context.Context, entry Entry) {
	if ctx.Err() != nil {
		return
	}

	t.logger.InfoContext(ctx, "Cron job triggered", "cron", entry.CronExpr, "canvas", entry.Request.CanvasPath)

	if err := t.callback(ctx, entry.Request); err != nil {
		t.logger.ErrorContext(ctx, "Scheduled run failed", "canvas", entry.Request.CanvasPath,
			"node_id", entry.Request.NodeID, "error", err)
	}
}

// Stop waits for running jobs to return.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")

	if t.cron == nil {
		return nil
	}

	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ triggers.Trigger = (*Trigger)(nil)
