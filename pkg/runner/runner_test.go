package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requirePython(t *testing.T) string {
	t.Helper()

	path, err := exec.LookPath(DefaultInterpreter)
	if err != nil {
		t.Skip("python3 is not installed")
	}

	return path
}

type recorder struct {
	messages []protocol.Message
	errors   []string
}

func (r *recorder) onMessage(_ context.Context, msg protocol.Message) (protocol.Message, error) {
	r.messages = append(r.messages, msg)

	return nil, nil
}

func (r *recorder) onError(_ context.Context, errText string) {
	r.errors = append(r.errors, errText)
}

func simplePayload() map[string]any {
	return map[string]any{
		"execution_type":   "simple",
		"vault_path":       "/vault",
		"canvas_path":      "board.canvas",
		"plugin_folder":    "",
		"parameter_data":   map[string]any{},
		"script_data":      map[string]any{"id": "s"},
		"arrow_parameters": []any{},
		"has_parameter":    false,
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "print('a')\n\tx = 1", Sanitize("print('a')\r\n\tx = 1\u200b"))
	assert.Equal(t, "", Sanitize("\x00\x01\x7f"))
}

func TestPreambleIsEmbedded(t *testing.T) {
	assert.Contains(t, Preamble(), "def _return_output_data")
	assert.Contains(t, Preamble(), "sys.stdin.readline()")
}

func TestPython_ReplaysMessagesInOrder(t *testing.T) {
	requirePython(t)

	dir := t.TempDir()
	r := &recorder{}
	p := NewPython(discardLogger(), WithTempDir(dir))

	source := strings.Join([]string{
		`print("hello", 1)`,
		`builtins.print("not json", flush=True)`,
		`notice(canvas_path)`,
		`create_text_node("made", 10, 20)`,
	}, "\n")

	ok, err := p.Execute(t.Context(), Invocation{
		Source:    source,
		Payload:   simplePayload(),
		OnMessage: r.onMessage,
		OnError:   r.onError,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, r.errors)

	require.Len(t, r.messages, 3)
	assert.Equal(t, protocol.Print{Text: "hello 1"}, r.messages[0])
	assert.Equal(t, protocol.Notice{Text: "board.canvas"}, r.messages[1])
	assert.Equal(t, protocol.CreateTextNode{Text: "made", X: 10, Y: 20, Width: 250, Height: 60}, r.messages[2])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPython_WorkflowReturnsOutput(t *testing.T) {
	requirePython(t)

	r := &recorder{}
	p := NewPython(discardLogger(), WithTempDir(t.TempDir()))

	payload := map[string]any{
		"execution_type": "workflow",
		"vault_path":     "/vault",
		"canvas_path":    "board.canvas",
		"plugin_folder":  "",
		"in_data":        map[string]any{"n": "hello"},
		"out_data":       map[string]any{"x": nil},
		"script_settings": map[string]any{"ioConnections": map[string]any{
			"n": map[string]any{"direction": "input", "type": "text"},
			"x": map[string]any{"direction": "output", "type": "text"},
		}},
		"script_data":        map[string]any{"id": "s"},
		"injected_variables": map[string]any{},
	}

	ok, err := p.Execute(t.Context(), Invocation{
		Source:    "out_data[\"x\"] = in_data[\"n\"].upper()\n_return_output_data()\n",
		Payload:   payload,
		OnMessage: r.onMessage,
		OnError:   r.onError,
	})
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, r.messages, 1)
	assert.Equal(t, protocol.ReturnOutput{Data: map[string]any{"x": "HELLO"}}, r.messages[0])
}

func TestPython_StderrFailsAndDropsMessages(t *testing.T) {
	requirePython(t)

	r := &recorder{}
	p := NewPython(discardLogger(), WithTempDir(t.TempDir()))

	ok, err := p.Execute(t.Context(), Invocation{
		Source:    "notice(\"before\")\nsys.stderr.write(\"boom\\n\")\n",
		Payload:   simplePayload(),
		OnMessage: r.onMessage,
		OnError:   r.onError,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, r.messages)
	require.Len(t, r.errors, 1)
	assert.Contains(t, r.errors[0], "boom")
}

func TestPython_ExitCodeFails(t *testing.T) {
	requirePython(t)

	r := &recorder{}
	p := NewPython(discardLogger(), WithTempDir(t.TempDir()))

	ok, err := p.Execute(t.Context(), Invocation{
		Source:    "sys.exit(3)\n",
		Payload:   simplePayload(),
		OnMessage: r.onMessage,
		OnError:   r.onError,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, r.errors, 1)
	assert.Contains(t, r.errors[0], "exit status 3")
}

func TestPython_MissingInterpreter(t *testing.T) {
	r := &recorder{}
	p := NewPython(discardLogger(),
		WithInterpreter(filepath.Join(t.TempDir(), "no-such-python")),
		WithTempDir(t.TempDir()),
	)

	ok, err := p.Execute(t.Context(), Invocation{
		Source:    "print(1)",
		Payload:   simplePayload(),
		OnMessage: r.onMessage,
		OnError:   r.onError,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, r.errors, 1)
	assert.Empty(t, r.messages)
}

func TestPython_UnencodablePayload(t *testing.T) {
	p := NewPython(discardLogger(), WithTempDir(t.TempDir()))

	ok, err := p.Execute(t.Context(), Invocation{Source: "", Payload: map[string]any{"bad": make(chan int)}})
	require.Error(t, err)
	assert.False(t, ok)
}

func TestWithInterpreter_EmptyKeepsDefault(t *testing.T) {
	p := NewPython(discardLogger(), WithInterpreter("  "))
	assert.Equal(t, DefaultInterpreter, p.Interpreter())

	p = NewPython(discardLogger(), WithInterpreter("/opt/python/bin/python3.12"))
	assert.Equal(t, "/opt/python/bin/python3.12", p.Interpreter())
}
