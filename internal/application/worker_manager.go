package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/triggers"
	"github.com/dukex/canvasblocks/pkg/workflow"
)

// Runner executes one run request.
type Runner interface {
	Execute(ctx context.Context, request models.RunRequest) (*models.Execution, error)
}

// WorkerManager starts triggers and feeds the requests they produce to a Runner.
type WorkerManager struct {
	workerID        string
	runner          Runner
	logger          *slog.Logger
	runningTriggers map[string]triggers.Trigger
	triggerMutex    sync.RWMutex
}

func NewWorkerManager(workerID string, runner Runner, logger *slog.Logger) *WorkerManager {
	return &WorkerManager{
		workerID:        workerID,
		runner:          runner,
		logger:          logger.With("module", "worker_manager", "worker_id", workerID),
		runningTriggers: make(map[string]triggers.Trigger),
	}
}

// Start starts trigger under name. Requests it produces are executed with ctx.
func (wm *WorkerManager) Start(ctx context.Context, name string, trigger triggers.Trigger) error {
	wm.triggerMutex.Lock()
	defer wm.triggerMutex.Unlock()

	if _, exists := wm.runningTriggers[name]; exists {
		return fmt.Errorf("trigger %s is already running", name)
	}

	if err := trigger.Start(ctx, wm.createCallback(name)); err != nil {
		return fmt.Errorf("failed to start trigger %s: %w", name, err)
	}

	wm.runningTriggers[name] = trigger
	wm.logger.InfoContext(ctx, "Started trigger", "trigger", name)

	return nil
}

// createCallback runs the request and reports only errors that kept the run from starting.
// Script failures are recorded on the execution and logged.
func (wm *WorkerManager) createCallback(name string) triggers.Callback {
	return func(ctx context.Context, request models.RunRequest) error {
		logger := wm.logger.With("trigger", name, "canvas", request.CanvasPath, "node_id", request.NodeID)
		logger.InfoContext(ctx, "Executing triggered run")

		execution, err := wm.runner.Execute(ctx, request)
		if execution == nil {
			return err
		}

		if err != nil {
			var scriptErr *workflow.ScriptError
			if errors.As(err, &scriptErr) {
				logger.WarnContext(ctx, "Triggered run failed", "execution_id", execution.ID, "script_id", scriptErr.ScriptID)

				return nil
			}

			logger.WarnContext(ctx, "Triggered run failed", "execution_id", execution.ID, "error", err)
		}

		return nil
	}
}

// Running returns the names of the started triggers.
func (wm *WorkerManager) Running() []string {
	wm.triggerMutex.RLock()
	defer wm.triggerMutex.RUnlock()

	names := make([]string, 0, len(wm.runningTriggers))
	for name := range wm.runningTriggers {
		names = append(names, name)
	}

	return names
}

// Stop stops every running trigger.
func (wm *WorkerManager) Stop(ctx context.Context) error {
	wm.triggerMutex.Lock()
	defer wm.triggerMutex.Unlock()

	var errs []error

	for name, trigger := range wm.runningTriggers {
		wm.logger.InfoContext(ctx, "Stopping trigger", "trigger", name)

		if err := trigger.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping trigger %s: %w", name, err))
		}
	}

	wm.runningTriggers = make(map[string]triggers.Trigger)

	return errors.Join(errs...)
}

// GetWorkerID returns the worker ID
func (wm *WorkerManager) GetWorkerID() string {
	return wm.workerID
}
