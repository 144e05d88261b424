// Package protocol defines the messages a script subprocess sends back to the host and the
// default way of applying them to a canvas.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command names a message kind on the wire.
type Command string

const (
	CommandCreateTextNode Command = "CREATE_TEXT_NODE"
	CommandCreateFileNode Command = "CREATE_FILE_NODE"
	CommandModifyTextNode Command = "MODIFY_TEXT_NODE"
	CommandRebuildCanvas  Command = "REBUILD_CANVAS"
	CommandPrint          Command = "PRINT"
	CommandNotice         Command = "NOTICE"
	CommandReturnOutput   Command = "RETURN_OUTPUT"
)

var (
	// ErrMalformedMessage indicates a line that is not a JSON object.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrMissingCommand indicates a JSON object without a command field.
	ErrMissingCommand = errors.New("message has no command")
)

// Message is one decoded subprocess message. The set of implementations is closed; Unknown
// carries commands this host does not understand.
type Message interface {
	Command() Command
	message()
}

type CreateTextNode struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type CreateFileNode struct {
	File   string  `json:"file"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ModifyTextNode struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type RebuildCanvas struct{}

type Print struct {
	Text string `json:"text"`
}

type Notice struct {
	Text string `json:"text"`
}

// ReturnOutput carries the values a workflow script produced, keyed by output port.
type ReturnOutput struct {
	Data map[string]any `json:"data"`
}

// Unknown is a well-formed message with an unrecognised command.
type Unknown struct {
	Name Command
	Raw  json.RawMessage
}

func (CreateTextNode) Command() Command { return CommandCreateTextNode }
func (CreateFileNode) Command() Command { return CommandCreateFileNode }
func (ModifyTextNode) Command() Command { return CommandModifyTextNode }
func (RebuildCanvas) Command() Command  { return CommandRebuildCanvas }
func (Print) Command() Command          { return CommandPrint }
func (Notice) Command() Command         { return CommandNotice }
func (ReturnOutput) Command() Command   { return CommandReturnOutput }
func (u Unknown) Command() Command      { return u.Name }

func (CreateTextNode) message() {}
func (CreateFileNode) message() {}
func (ModifyTextNode) message() {}
func (RebuildCanvas) message()  {}
func (Print) message()          {}
func (Notice) message()         {}
func (ReturnOutput) message()   {}
func (Unknown) message()        {}

// Decode parses one line written by a script.
func Decode(line []byte) (Message, error) {
	var envelope struct {
		Command *Command `json:"command"`
	}

	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if envelope.Command == nil {
		return nil, ErrMissingCommand
	}

	var (
		msg Message
		err error
	)

	switch *envelope.Command {
	case CommandCreateTextNode:
		msg, err = decodeAs[CreateTextNode](line)
	case CommandCreateFileNode:
		msg, err = decodeAs[CreateFileNode](line)
	case CommandModifyTextNode:
		msg, err = decodeAs[ModifyTextNode](line)
	case CommandRebuildCanvas:
		msg = RebuildCanvas{}
	case CommandPrint:
		msg, err = decodeAs[Print](line)
	case CommandNotice:
		msg, err = decodeAs[Notice](line)
	case CommandReturnOutput:
		msg, err = decodeAs[ReturnOutput](line)
	default:
		msg = Unknown{Name: *envelope.Command, Raw: append(json.RawMessage(nil), line...)}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, *envelope.Command, err)
	}

	return msg, nil
}

func decodeAs[T Message](line []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, err
	}

	return msg, nil
}
