package workflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/locator"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/dukex/canvasblocks/pkg/runner"
	"github.com/dukex/canvasblocks/pkg/vault"
	"github.com/stretchr/testify/require"
)

const pythonBlock = "```pycanvasblock\nout_data = out_data\n```"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scriptNode(id string, x, y float64, settings string) models.Node {
	return models.Node{
		ID:     id,
		Type:   models.NodeTypeText,
		X:      x,
		Y:      y,
		Width:  400,
		Height: 400,
		Text:   "```canvasblocksettings\n" + settings + "\n```\n" + pythonBlock,
	}
}

func pointNode(id, name, scriptID string, x, y float64) models.Node {
	return models.Node{
		ID:     id,
		Type:   models.NodeTypeText,
		X:      x,
		Y:      y,
		Width:  200,
		Height: 60,
		Text:   blocks.ConnectionPointText(models.ConnectionPoint{Name: name, ScriptID: scriptID}),
	}
}

func textNode(id, text string, x, y float64) models.Node {
	return models.Node{ID: id, Type: models.NodeTypeText, X: x, Y: y, Width: 200, Height: 100, Text: text}
}

func edge(id, from, to string) models.Edge {
	return models.Edge{ID: id, FromNode: from, ToNode: to}
}

type call struct {
	ScriptID string
	Source   string
	Payload  map[string]any
}

// fakeRunner replays scripted messages per script instead of starting a subprocess.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []call
	messages map[string][]protocol.Message
	failing  map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{messages: map[string][]protocol.Message{}, failing: map[string]bool{}}
}

func (f *fakeRunner) returns(scriptID string, data map[string]any) {
	f.messages[scriptID] = append(f.messages[scriptID], protocol.ReturnOutput{Data: data})
}

func (f *fakeRunner) Execute(ctx context.Context, inv runner.Invocation) (bool, error) {
	payload, _ := inv.Payload.(map[string]any)
	script, _ := payload["script_data"].(models.Node)

	f.mu.Lock()
	f.calls = append(f.calls, call{ScriptID: script.ID, Source: inv.Source, Payload: payload})
	failing := f.failing[script.ID]
	messages := f.messages[script.ID]
	f.mu.Unlock()

	if failing {
		inv.OnError(ctx, "Traceback: boom")

		return false, nil
	}

	for _, msg := range messages {
		if _, err := inv.OnMessage(ctx, msg); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (f *fakeRunner) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ids = append(ids, c.ScriptID)
	}

	return ids
}

func (f *fakeRunner) callFor(t *testing.T, scriptID string) call {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.calls {
		if c.ScriptID == scriptID {
			return c
		}
	}

	require.FailNow(t, "script was not executed", scriptID)

	return call{}
}

type recordingHost struct {
	mu       sync.Mutex
	notices  []string
	rebuilds int
}

func (h *recordingHost) Notice(_ context.Context, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.notices = append(h.notices, text)
}

func (h *recordingHost) Rebuild(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rebuilds++
}

type testEnv struct {
	doc       *canvas.File
	vault     *vault.Local
	runner    *fakeRunner
	host      *recordingHost
	executor  *Executor
	scheduler *Scheduler
}

func newTestEnv(t *testing.T, data models.Canvas, opts ...SchedulerOption) *testEnv {
	t.Helper()

	v, err := vault.NewLocal(t.TempDir())
	require.NoError(t, err)

	logger := discardLogger()
	host := &recordingHost{}
	fake := newFakeRunner()
	executor := NewExecutor(v, host, logger, WithRunner(blocks.LanguagePython, fake))

	return &testEnv{
		doc:       canvas.New(data),
		vault:     v,
		runner:    fake,
		host:      host,
		executor:  executor,
		scheduler: NewScheduler(locator.New(v, logger), executor, v, host, logger, opts...),
	}
}

func (e *testEnv) node(t *testing.T, id string) models.Node {
	t.Helper()

	node, ok := e.doc.Node(id)
	require.True(t, ok, id)

	return node
}

func inData(c call) map[string]any {
	in, _ := c.Payload["in_data"].(map[string]any)

	return in
}

func outData(c call) map[string]any {
	out, _ := c.Payload["out_data"].(map[string]any)

	return out
}
