package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/locator"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/dukex/canvasblocks/pkg/vault"
)

const (
	stoppedNotice = "Workflow execution stopped because a script failed"
	healedNotice  = "WARNING: Settings type not set to workflow. This has been automatically fixed (Workflow script)"
)

// ConnectionIndexer indexes the connection points of a document by owning script.
type ConnectionIndexer interface {
	ConnectionPoints(ctx context.Context, doc canvas.Document) map[string][]locator.Connection
}

// Observer is told about every script a run starts and finishes.
type Observer interface {
	ScriptStarted(ctx context.Context, script models.Node) context.Context
	ScriptFinished(ctx context.Context, script models.Node, err error)
}

type noopObserver struct{}

func (noopObserver) ScriptStarted(ctx context.Context, _ models.Node) context.Context { return ctx }
func (noopObserver) ScriptFinished(context.Context, models.Node, error)               {}

// Result summarises one run.
type Result struct {
	Success        bool
	Mode           models.ExecutionMode
	Executed       []string
	FailedScriptID string
	Graph          *Graph
}

// Scheduler discovers every script connected to a starting script and runs them in
// dependency order, one at a time.
type Scheduler struct {
	index    ConnectionIndexer
	executor ScriptExecutor
	vault    vault.Vault
	host     protocol.Host
	logger   *slog.Logger
	ordering Ordering
	observer Observer
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithOrdering(ordering Ordering) SchedulerOption {
	return func(s *Scheduler) {
		s.ordering = ordering
	}
}

func WithObserver(observer Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = observer
	}
}

func NewScheduler(index ConnectionIndexer, executor ScriptExecutor, v vault.Vault, host protocol.Host,
	logger *slog.Logger, opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		index:    index,
		executor: executor,
		vault:    v,
		host:     host,
		logger:   logger.With("module", "scheduler"),
		ordering: OrderReverseDiscovery,
		observer: noopObserver{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run discovers the workflow graph around start and executes it. A failed script stops the
// run; effects of scripts that already ran are kept.
func (s *Scheduler) Run(ctx context.Context, doc canvas.Document, start models.Node) (*Result, error) {
	result := &Result{Mode: models.ExecutionModeWorkflow}

	graph, err := s.Discover(ctx, doc, start)
	result.Graph = graph

	if err != nil {
		return result, err
	}

	order, err := s.ordering.Order(graph)
	if err != nil {
		s.host.Notice(ctx, "Workflow cannot run: "+err.Error())

		return result, err
	}

	for _, script := range order {
		if err := s.runScript(ctx, doc, graph, script); err != nil {
			s.host.Notice(ctx, stoppedNotice)
			s.logger.WarnContext(ctx, "Workflow stopped", "script_id", script.ID, "error", err)

			result.FailedScriptID = script.ID

			return result, &ScriptError{ScriptID: script.ID, Err: err}
		}

		result.Executed = append(result.Executed, script.ID)
	}

	result.Success = true

	return result, nil
}

func (s *Scheduler) runScript(ctx context.Context, doc canvas.Document, graph *Graph, script models.Node) (err error) {
	ctx = s.observer.ScriptStarted(ctx, script)
	defer func() { s.observer.ScriptFinished(ctx, script, err) }()

	in, out := graph.Inputs(script.ID)

	settings := graph.Settings[script.ID]
	if settings == nil {
		settings = &models.WorkflowSettings{IOConnections: map[string]models.IOConnection{}}
	}

	payload := map[string]any{
		"in_data":         in,
		"out_data":        out,
		"script_settings": settings,
		"script_data":     script,
	}

	collect := func(_ context.Context, msg protocol.Message) (protocol.Message, error) {
		output, ok := msg.(protocol.ReturnOutput)
		if !ok {
			return msg, nil
		}

		for port, value := range output.Data {
			graph.ExecutionData[models.PortKey(script.ID, port)] = value
		}

		return nil, nil
	}

	ok, err := s.executor.Execute(ctx, doc, script, payload, models.ExecutionModeWorkflow, collect)
	if err != nil {
		return err
	}

	if !ok {
		return ErrScriptFailed
	}

	return nil
}

// Discover walks input wiring outward from start, breadth first, resolving plain nodes
// wired into inputs as it goes.
func (s *Scheduler) Discover(ctx context.Context, doc canvas.Document, start models.Node) (*Graph, error) {
	graph := newGraph(s.index.ConnectionPoints(ctx, doc))

	queue := []models.Node{start}
	seen := map[string]bool{start.ID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		settings, err := blocks.NodeSettings(ctx, s.vault, current)
		if err == nil {
			current, settings = s.heal(ctx, doc, current, settings)
		}

		if !graph.discovered(current.ID) {
			graph.ExecuteOrder = append(graph.ExecuteOrder, current)
		}

		if err != nil {
			if !errors.Is(err, blocks.ErrBlockNotFound) {
				s.logger.WarnContext(ctx, "Ignoring unreadable settings", "script_id", current.ID, "error", err)
			}

			continue
		}

		graph.Settings[current.ID] = settings

		for _, connection := range graph.ScriptPorts[current.ID] {
			port, ok := settings.IOConnections[connection.Point.Name]
			if !ok || port.Direction == models.PortDirectionOutput {
				continue
			}

			edge, ok := canvas.FirstIncomingEdge(doc, connection.Node.ID)
			if !ok {
				continue
			}

			source, ok := doc.Node(edge.FromNode)
			if !ok {
				continue
			}

			portKey := models.PortKey(current.ID, connection.Point.Name)

			point, err := blocks.NodeConnectionPoint(source)
			if errors.Is(err, blocks.ErrBlockNotFound) {
				leafKey := models.LeafKey(source.ID)
				graph.DataFlow[portKey] = leafKey

				value, err := s.resolveLeaf(ctx, port.Type, source)
				if errors.Is(err, errLeafWithoutText) {
					s.logger.DebugContext(ctx, "Leaf carries no text, input left unset",
						"script_id", current.ID, "port", connection.Point.Name, "leaf_id", source.ID)

					continue
				}

				if err != nil {
					leafErr := &LeafError{ScriptID: current.ID, Port: connection.Point.Name, LeafID: source.ID, Err: err}
					s.host.Notice(ctx, leafErr.Error())

					return graph, leafErr
				}

				graph.ExecutionData[leafKey] = value

				continue
			}

			if err != nil {
				s.logger.WarnContext(ctx, "Ignoring unreadable connection point", "node_id", source.ID, "error", err)

				continue
			}

			producer, ok := doc.Node(point.ScriptID)
			if !ok {
				continue
			}

			if !seen[producer.ID] {
				seen[producer.ID] = true
				queue = append(queue, producer)
			}

			graph.DataFlow[portKey] = models.PortKey(producer.ID, point.Name)
			graph.addProducer(current.ID, producer.ID)
		}
	}

	return graph, nil
}

// errLeafWithoutText marks a leaf, such as a group, that has no text to give a text port.
// The port stays unset instead of failing the run.
var errLeafWithoutText = errors.New("leaf carries no text")

// resolveLeaf turns a plain node into the value of a port of type portType.
func (s *Scheduler) resolveLeaf(ctx context.Context, portType models.PortType, leaf models.Node) (any, error) {
	switch portType {
	case models.PortTypeText, models.PortTypeInteger, models.PortTypeFloat:
		if leaf.Type != models.NodeTypeText && leaf.Type != models.NodeTypeLink && leaf.Type != models.NodeTypeFile {
			return nil, errLeafWithoutText
		}

		text, ok := blocks.NodeText(ctx, s.vault, leaf)
		if !ok {
			return nil, fmt.Errorf("%w: failed to load node as text", ErrLeafUnreadable)
		}

		return text, nil
	case models.PortTypeImage:
		if leaf.Type != models.NodeTypeFile {
			return nil, fmt.Errorf("%w: attempted to load a non-image node as an image", ErrLeafTypeMismatch)
		}

		if s.vault == nil {
			return nil, fmt.Errorf("%w: no vault to read %s from", ErrLeafUnreadable, leaf.File)
		}

		data, err := s.vault.ReadBinary(ctx, leaf.File)
		if err != nil {
			return nil, fmt.Errorf("%w: attempt to load image %s failed: %w", ErrLeafUnreadable, leaf.File, err)
		}

		return base64.StdEncoding.EncodeToString(data), nil
	default:
		encoded, err := json.Marshal(leaf)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLeafUnreadable, err)
		}

		return string(encoded), nil
	}
}

// heal rewrites a settings block whose type is neither "workflow" nor "simple" to
// "workflow", in the canvas for text nodes and in the vault for file nodes.
func (s *Scheduler) heal(ctx context.Context, doc canvas.Document, node models.Node,
	settings *models.WorkflowSettings,
) (models.Node, *models.WorkflowSettings) {
	if settings.Type == models.SettingsTypeWorkflow || settings.Type == models.SettingsTypeSimple {
		return node, settings
	}

	text, ok := blocks.NodeText(ctx, s.vault, node)
	if !ok {
		return node, settings
	}

	rewritten, err := blocks.RewriteSettingsType(text, models.SettingsTypeWorkflow)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to rewrite settings type", "script_id", node.ID, "error", err)

		return node, settings
	}

	switch node.Type {
	case models.NodeTypeText:
		if err := doc.SetText(node.ID, rewritten); err != nil {
			s.logger.WarnContext(ctx, "Failed to rewrite settings type", "script_id", node.ID, "error", err)

			return node, settings
		}

		doc.RequestSave()

		node.Text = rewritten
	case models.NodeTypeFile:
		if err := s.vault.Write(ctx, node.File, rewritten); err != nil {
			s.logger.WarnContext(ctx, "Failed to rewrite settings type", "script_id", node.ID, "error", err)

			return node, settings
		}
	default:
		return node, settings
	}

	s.host.Notice(ctx, healedNotice)

	healed := *settings
	healed.Type = models.SettingsTypeWorkflow

	return node, &healed
}
