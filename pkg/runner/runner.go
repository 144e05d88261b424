// Package runner executes one canvas script in its own interpreter process and exchanges
// newline-delimited JSON with it.
package runner

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/google/uuid"
)

//go:embed canvasblocks.py
var preamble string

// Preamble returns the helper library prepended to every script.
func Preamble() string {
	return preamble
}

const (
	DefaultInterpreter = "python3"

	maxMessageSize = 64 << 20
)

// Invocation is one script run. Nil handlers fall back to logging.
type Invocation struct {
	Source    string
	Payload   any
	OnMessage protocol.Handler
	OnError   protocol.ErrorHandler
}

// Runner runs script source and reports whether it succeeded. The returned error is reserved
// for failures to set the run up or a cancelled context; a script that fails returns false.
type Runner interface {
	Execute(ctx context.Context, inv Invocation) (bool, error)
}

// Python runs scripts with a python interpreter.
type Python struct {
	interpreter string
	tempDir     string
	logger      *slog.Logger
}

// Option configures a Python runner.
type Option func(*Python)

// WithInterpreter sets the interpreter binary; empty keeps DefaultInterpreter.
func WithInterpreter(path string) Option {
	return func(p *Python) {
		if strings.TrimSpace(path) != "" {
			p.interpreter = path
		}
	}
}

// WithTempDir sets where script files are written.
func WithTempDir(dir string) Option {
	return func(p *Python) {
		p.tempDir = dir
	}
}

func NewPython(logger *slog.Logger, opts ...Option) *Python {
	p := &Python{
		interpreter: DefaultInterpreter,
		tempDir:     os.TempDir(),
		logger:      logger.With("module", "runner"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Interpreter returns the interpreter binary in use.
func (p *Python) Interpreter() string {
	return p.interpreter
}

// Sanitize drops every character other than tab, newline and printable ASCII.
func Sanitize(source string) string {
	var b strings.Builder

	b.Grow(len(source))

	for i := 0; i < len(source); i++ {
		c := source[i]
		if c == '\t' || c == '\n' || (c >= 0x20 && c <= 0x7e) {
			b.WriteByte(c)
		}
	}

	return b.String()
}

func (p *Python) Execute(ctx context.Context, inv Invocation) (bool, error) {
	onMessage := inv.OnMessage
	if onMessage == nil {
		onMessage = p.logMessage
	}

	onError := inv.OnError
	if onError == nil {
		onError = func(ctx context.Context, errText string) {
			p.logger.ErrorContext(ctx, "Script failed", "error", errText)
		}
	}

	payload, err := json.Marshal(inv.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode script payload: %w", err)
	}

	scriptPath := filepath.Join(p.tempDir, "canvasblocks-"+uuid.NewString()+".py")
	script := preamble + "\n" + Sanitize(inv.Source) + "\n"

	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return false, fmt.Errorf("failed to write script file: %w", err)
	}

	defer func() {
		if err := os.Remove(scriptPath); err != nil {
			p.logger.WarnContext(ctx, "Failed to remove script file", "path", scriptPath, "error", err)
		}
	}()

	queue, errText := p.run(ctx, scriptPath, payload)

	if errText != "" {
		onError(ctx, errText)

		if ctx.Err() != nil {
			return false, fmt.Errorf("script interrupted: %w", ctx.Err())
		}

		return false, nil
	}

	for _, msg := range queue {
		if _, err := onMessage(ctx, msg); err != nil {
			p.logger.WarnContext(ctx, "Failed to apply script message", "command", msg.Command(), "error", err)
		}
	}

	return true, nil
}

// run starts the interpreter, feeds it payload and collects its messages and error output.
func (p *Python) run(ctx context.Context, scriptPath string, payload []byte) ([]protocol.Message, string) {
	var (
		errOut strings.Builder
		stderr bytes.Buffer
		queue  []protocol.Message
	)

	cmd := exec.CommandContext(ctx, p.interpreter, scriptPath)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err.Error() + "\n"
	}

	p.logger.DebugContext(ctx, "Starting script", "interpreter", p.interpreter, "path", scriptPath)

	if err := cmd.Start(); err != nil {
		return nil, err.Error() + "\n"
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping unreadable script output", "line", string(line), "error", err)

			continue
		}

		queue = append(queue, msg)
	}

	if err := scanner.Err(); err != nil {
		errOut.WriteString(err.Error() + "\n")
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		errOut.WriteString(err.Error() + "\n")
	}

	if stderr.Len() > 0 {
		errOut.WriteString(stderr.String())
	}

	return queue, errOut.String()
}

func (p *Python) logMessage(ctx context.Context, msg protocol.Message) (protocol.Message, error) {
	p.logger.DebugContext(ctx, "Unhandled script message", "command", msg.Command())

	return msg, nil
}

var _ Runner = (*Python)(nil)
