package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/dukex/canvasblocks/pkg/runner"
	"github.com/dukex/canvasblocks/pkg/vault"
)

// WorkflowTrailer is appended to every workflow script so its outputs are sent back.
const WorkflowTrailer = "\n_return_output_data()\n"

// ScriptExecutor runs one script node with a mode-specific payload.
type ScriptExecutor interface {
	Execute(ctx context.Context, doc canvas.Document, script models.Node, payload map[string]any,
		mode models.ExecutionMode, onMessage protocol.Handler) (bool, error)
}

// Executor prepares a script node for its runner: it picks the language, checks requested
// variables, completes the payload and routes script messages back into the canvas.
type Executor struct {
	runners      map[blocks.Language]runner.Runner
	vault        vault.Vault
	host         protocol.Host
	variables    map[string]string
	pluginFolder string
	logger       *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunner registers the runner used for scripts in language.
func WithRunner(language blocks.Language, r runner.Runner) ExecutorOption {
	return func(e *Executor) {
		e.runners[language] = r
	}
}

// WithVariables sets the host variables scripts may request through allowedVariables.
func WithVariables(variables map[string]string) ExecutorOption {
	return func(e *Executor) {
		e.variables = maps.Clone(variables)
	}
}

// WithPluginFolder sets the data folder reported to scripts as plugin_folder.
func WithPluginFolder(folder string) ExecutorOption {
	return func(e *Executor) {
		e.pluginFolder = DataFolder(folder)
	}
}

func NewExecutor(v vault.Vault, host protocol.Host, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		runners: make(map[blocks.Language]runner.Runner),
		vault:   v,
		host:    host,
		logger:  logger.With("module", "script_executor"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// DataFolder normalises the configured data folder; "/" means the vault root.
func DataFolder(folder string) string {
	if folder == "/" {
		return ""
	}

	return folder
}

func (e *Executor) Execute(ctx context.Context, doc canvas.Document, script models.Node, payload map[string]any,
	mode models.ExecutionMode, onMessage protocol.Handler,
) (bool, error) {
	logger := e.logger.With("script_id", script.ID, "mode", mode)

	text, ok := blocks.NodeText(ctx, e.vault, script)
	if !ok {
		return false, fmt.Errorf("%w: cannot read node %s", ErrNoScript, script.ID)
	}

	language, ok := blocks.DetectLanguage(text)
	if !ok {
		e.host.Notice(ctx, "This script doesn't contain any of the enabled languages")

		return false, ErrNoLanguage
	}

	settings, err := blocks.ParseSettings(text)
	switch {
	case errors.Is(err, blocks.ErrBlockNotFound):
		settings = &models.WorkflowSettings{}
	case err != nil:
		e.host.Notice(ctx, "The settings of this script cannot be read")

		return false, err
	}

	injected := make(map[string]string, len(settings.AllowedVariables))

	for _, name := range settings.AllowedVariables {
		value, ok := e.variables[name]
		if !ok {
			e.host.Notice(ctx, fmt.Sprintf("Requested variable %q cannot be found from plugin settings", name))

			return false, fmt.Errorf("%w: %s", ErrMissingVariable, name)
		}

		injected[name] = value
	}

	source, _ := blocks.ExtractScript(text, language)
	if mode == models.ExecutionModeWorkflow {
		source += WorkflowTrailer
	}

	r, ok := e.runners[language]
	if !ok {
		e.host.Notice(ctx, fmt.Sprintf("No runner is configured for %s scripts", language))

		return false, fmt.Errorf("%w: %s", ErrNoExecutor, language)
	}

	full := maps.Clone(payload)
	if full == nil {
		full = map[string]any{}
	}

	full["execution_type"] = string(mode)
	full["vault_path"] = e.vaultPath()
	full["canvas_path"] = e.canvasPath(doc)
	full["plugin_folder"] = e.pluginFolder
	full["injected_variables"] = injected

	logger.DebugContext(ctx, "Running script", "language", language)

	return r.Execute(ctx, runner.Invocation{
		Source:    source,
		Payload:   full,
		OnMessage: chain(protocol.DefaultHandler(doc, e.host, logger), onMessage),
		OnError:   protocol.DefaultErrorHandler(e.host, logger),
	})
}

func (e *Executor) vaultPath() string {
	if e.vault == nil {
		return ""
	}

	return e.vault.BasePath()
}

// canvasPath reports the document path relative to the vault when it lies inside it.
func (e *Executor) canvasPath(doc canvas.Document) string {
	base := e.vaultPath()
	if base == "" || doc.Path() == "" {
		return doc.Path()
	}

	rel, err := filepath.Rel(base, doc.Path())
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return doc.Path()
	}

	return filepath.ToSlash(rel)
}

// chain offers a message to first and hands anything it passes through to next.
func chain(first, next protocol.Handler) protocol.Handler {
	if next == nil {
		return first
	}

	return func(ctx context.Context, msg protocol.Message) (protocol.Message, error) {
		rest, err := first(ctx, msg)
		if err != nil || rest == nil {
			return rest, err
		}

		return next(ctx, rest)
	}
}

var _ ScriptExecutor = (*Executor)(nil)
