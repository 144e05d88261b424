// Package application runs canvases end to end: it locks and opens the document, finds the
// workflow around the requested node, runs it, saves the result and records the run.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/config"
	"github.com/dukex/canvasblocks/pkg/eventbus"
	"github.com/dukex/canvasblocks/pkg/events"
	"github.com/dukex/canvasblocks/pkg/locator"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/otelhelper"
	"github.com/dukex/canvasblocks/pkg/persistence"
	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/dukex/canvasblocks/pkg/runner"
	"github.com/dukex/canvasblocks/pkg/vault"
	"github.com/dukex/canvasblocks/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidRequest indicates a run request missing its canvas or node.
var ErrInvalidRequest = errors.New("invalid run request")

// Service executes run requests against the canvases of one vault.
type Service struct {
	vault      *vault.Local
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	host       protocol.Host
	runners    map[blocks.Language]runner.Runner
	settings   config.Settings
	ordering   workflow.Ordering
	locator    *locator.Locator
	cache      *locator.Cache
	validate   *validator.Validate
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRunner registers the runner used for scripts written in language.
func WithRunner(language blocks.Language, r runner.Runner) Option {
	return func(s *Service) {
		s.runners[language] = r
	}
}

// WithPublisher publishes run lifecycle events to publisher.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithHost sends notices and rebuild requests to host instead of the log.
func WithHost(host protocol.Host) Option {
	return func(s *Service) {
		s.host = host
	}
}

// NewService builds a Service. Without a WithRunner option python blocks run with the
// interpreter named in settings.
func NewService(v *vault.Local, executions persistence.ExecutionRepository, settings config.Settings,
	logger *slog.Logger, opts ...Option,
) (*Service, error) {
	ordering, err := workflow.ParseOrdering(settings.Ordering)
	if err != nil {
		return nil, err
	}

	logger = logger.With("module", "application")
	finder := locator.New(v, logger)

	s := &Service{
		vault:      v,
		executions: executions,
		tracer:     otelhelper.NoopTracer(),
		host:       protocol.LogHost{Logger: logger},
		runners:    make(map[blocks.Language]runner.Runner),
		settings:   settings,
		ordering:   ordering,
		locator:    finder,
		cache:      locator.NewCache(finder, settings.LocatorCacheTTL),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	if _, ok := s.runners[blocks.LanguagePython]; !ok {
		s.runners[blocks.LanguagePython] = runner.NewPython(logger, runner.WithInterpreter(settings.PythonPath))
	}

	return s, nil
}

// Execute runs the workflow around request.NodeID, or the lone script there when the node
// belongs to no workflow and no mode was asked for. The returned execution is nil only
// when the run could not start; otherwise it carries the outcome and is returned together
// with the run error, if any.
func (s *Service) Execute(ctx context.Context, request models.RunRequest) (*models.Execution, error) {
	if err := s.validate.Struct(request); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	path, err := s.vault.Resolve(request.CanvasPath)
	if err != nil {
		return nil, err
	}

	unlock, err := canvas.Lock(ctx, path)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := unlock(); err != nil {
			s.logger.WarnContext(ctx, "Failed to release canvas lock", "canvas", request.CanvasPath, "error", err)
		}
	}()

	doc, err := canvas.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	execution := &models.Execution{
		ID:         uuid.NewString(),
		CanvasPath: request.CanvasPath,
		AnchorID:   request.NodeID,
		Mode:       request.Mode,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "canvasblocks.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.CanvasPathKey, execution.CanvasPath),
		attribute.String(otelhelper.AnchorIDKey, execution.AnchorID),
	)
	defer span.End()

	logger := s.logger.With("execution_id", execution.ID, "canvas", execution.CanvasPath)
	logger.InfoContext(ctx, "Run started", "node_id", request.NodeID, "mode", request.Mode)

	s.record(ctx, execution)

	started := events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, execution.ID, execution.CanvasPath),
		AnchorID:  execution.AnchorID,
		Mode:      execution.Mode,
	}
	s.publish(ctx, execution.ID, started)

	observer := &runObserver{service: s, execution: execution, started: make(map[string]time.Time)}

	result, runErr := s.run(ctx, doc, request, observer)
	if result != nil {
		execution.Mode = result.Mode
		execution.ScriptIDs = result.Executed
		execution.FailedScriptID = result.FailedScriptID
	}

	if doc.Dirty() {
		if err := doc.Save(ctx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("failed to save canvas: %w", err))
		}

		s.cache.Invalidate()
	}

	execution.Finish(runErr, time.Now().UTC())
	span.SetAttributes(attribute.String(otelhelper.ExecutionModeKey, string(execution.Mode)))

	s.record(ctx, execution)

	if runErr != nil {
		otelhelper.Fail(span, runErr)
		logger.WarnContext(ctx, "Run failed", "failed_script_id", execution.FailedScriptID, "error", runErr)

		s.publish(ctx, execution.ID, events.RunFailed{
			BaseEvent:      events.NewBaseEvent(events.RunFailedEvent, execution.ID, execution.CanvasPath),
			Mode:           execution.Mode,
			Executed:       execution.ScriptIDs,
			FailedScriptID: execution.FailedScriptID,
			Error:          execution.Error,
			Duration:       execution.Duration(),
		})

		return execution, runErr
	}

	logger.InfoContext(ctx, "Run finished", "executed", execution.ScriptIDs, "duration", execution.Duration())

	s.publish(ctx, execution.ID, events.RunFinished{
		BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, execution.ID, execution.CanvasPath),
		Mode:      execution.Mode,
		Executed:  execution.ScriptIDs,
		Duration:  execution.Duration(),
	})

	return execution, nil
}

func (s *Service) run(ctx context.Context, doc *canvas.File, request models.RunRequest,
	observer workflow.Observer,
) (*workflow.Result, error) {
	executor := workflow.NewExecutor(s.vault, s.host, s.logger, s.executorOptions()...)

	if request.Mode == models.ExecutionModeSimple {
		return workflow.NewSimple(executor, s.vault, s.host).Run(ctx, doc, request.NodeID)
	}

	scheduler := workflow.NewScheduler(s.locator, executor, s.vault, s.host, s.logger,
		workflow.WithOrdering(s.ordering),
		workflow.WithObserver(observer),
	)

	nodes, err := s.cache.Locate(ctx, doc, request.NodeID)
	if err == nil {
		return scheduler.Run(ctx, doc, nodes.SettingsNode)
	}

	if !errors.Is(err, locator.ErrWorkflowNotFound) {
		return nil, err
	}

	if anchor, ok := doc.Node(request.NodeID); ok && anchor.IsGroup() {
		return scheduler.RunFromGroup(ctx, doc, anchor.ID)
	}

	if request.Mode == models.ExecutionModeWorkflow {
		s.host.Notice(ctx, "Selected node is not part of a workflow")

		return &workflow.Result{Mode: models.ExecutionModeWorkflow}, err
	}

	return workflow.NewSimple(executor, s.vault, s.host).Run(ctx, doc, request.NodeID)
}

func (s *Service) executorOptions() []workflow.ExecutorOption {
	opts := []workflow.ExecutorOption{
		workflow.WithVariables(s.settings.Variables),
		workflow.WithPluginFolder(workflow.DataFolder(s.settings.DataFolder)),
	}

	for language, r := range s.runners {
		opts = append(opts, workflow.WithRunner(language, r))
	}

	return opts
}

// Locate returns the workflow the node belongs to.
func (s *Service) Locate(ctx context.Context, canvasPath, nodeID string) (*models.WorkflowNodes, error) {
	doc, err := s.open(ctx, canvasPath)
	if err != nil {
		return nil, err
	}

	return s.cache.Locate(ctx, doc, nodeID)
}

// AddScript places the workflow script at scriptPath on the canvas at (x, y) and saves it.
func (s *Service) AddScript(ctx context.Context, canvasPath, scriptPath string, x, y float64) (*workflow.Placement, error) {
	path, err := s.vault.Resolve(canvasPath)
	if err != nil {
		return nil, err
	}

	unlock, err := canvas.Lock(ctx, path)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := unlock(); err != nil {
			s.logger.WarnContext(ctx, "Failed to release canvas lock", "canvas", canvasPath, "error", err)
		}
	}()

	doc, err := canvas.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	placement, err := workflow.AddWorkflowScript(ctx, doc, s.vault, scriptPath, x, y, workflow.DefaultLayout)
	if err != nil {
		return nil, err
	}

	if err := doc.Save(ctx); err != nil {
		return nil, fmt.Errorf("failed to save canvas: %w", err)
	}

	s.cache.Invalidate()

	return placement, nil
}

// Scripts lists the workflow scripts available in the configured script folder.
func (s *Service) Scripts(ctx context.Context) ([]string, error) {
	return workflow.WorkflowScripts(ctx, s.vault, s.settings.WorkflowScriptFolder)
}

// Execution returns a recorded run.
func (s *Service) Execution(ctx context.Context, id string) (*models.Execution, error) {
	return s.executions.GetExecution(ctx, id)
}

// Executions lists recorded runs, most recent first.
func (s *Service) Executions(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	return s.executions.ListExecutions(ctx, filter)
}

func (s *Service) open(ctx context.Context, canvasPath string) (*canvas.File, error) {
	path, err := s.vault.Resolve(canvasPath)
	if err != nil {
		return nil, err
	}

	return canvas.Open(ctx, path)
}

func (s *Service) record(ctx context.Context, execution *models.Execution) {
	if err := s.executions.SaveExecution(ctx, execution); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save execution", "execution_id", execution.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
