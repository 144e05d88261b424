package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/canvasblocks/pkg/canvas"
)

// Handler applies one message. It returns nil when the message was consumed, or the message
// itself so an outer handler can deal with it.
type Handler func(ctx context.Context, msg Message) (Message, error)

// ErrorHandler receives the accumulated error output of a failed script.
type ErrorHandler func(ctx context.Context, errText string)

// Host is the user-facing side of a run: transient notices and view refreshes.
type Host interface {
	Notice(ctx context.Context, text string)
	Rebuild(ctx context.Context)
}

// LogHost is a Host that writes notices to a logger.
type LogHost struct {
	Logger *slog.Logger
}

func (h LogHost) Notice(ctx context.Context, text string) {
	h.Logger.InfoContext(ctx, "Notice", "text", text)
}

func (h LogHost) Rebuild(ctx context.Context) {
	h.Logger.DebugContext(ctx, "Canvas rebuild requested")
}

// DefaultHandler applies node creation, text edits, rebuild requests, prints and notices to
// doc and host. RETURN_OUTPUT and unknown commands are passed through.
func DefaultHandler(doc canvas.Document, host Host, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg Message) (Message, error) {
		switch m := msg.(type) {
		case CreateTextNode:
			doc.CreateTextNode(m.Text, canvas.Placement{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height})
		case CreateFileNode:
			doc.CreateFileNode(m.File, canvas.Placement{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height})
		case ModifyTextNode:
			if err := doc.SetText(m.ID, m.Text); err != nil {
				return nil, err
			}

			doc.RequestSave()
		case RebuildCanvas:
			host.Rebuild(ctx)
		case Print:
			logger.InfoContext(ctx, m.Text, "source", "script")
		case Notice:
			host.Notice(ctx, m.Text)
		default:
			return msg, nil
		}

		return nil, nil
	}
}

// DefaultErrorHandler tells the user a script failed and logs the full error output.
func DefaultErrorHandler(host Host, logger *slog.Logger) ErrorHandler {
	return func(ctx context.Context, errText string) {
		host.Notice(ctx, "An error has occurred while running this script. Check the log for more detail.")
		logger.ErrorContext(ctx, "Script failed", "error", errText)
	}
}
