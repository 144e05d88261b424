// Package workflow discovers the scripts wired together on a canvas, orders them and runs
// them one after another, passing port values between them.
package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrLeafTypeMismatch indicates a plain node wired into a port that cannot accept it,
	// such as a text node feeding an image port.
	ErrLeafTypeMismatch = errors.New("leaf node does not match port type")

	// ErrLeafUnreadable indicates a plain node whose content cannot be read.
	ErrLeafUnreadable = errors.New("leaf node cannot be read")

	// ErrScriptFailed indicates a script subprocess reported failure.
	ErrScriptFailed = errors.New("script failed")

	// ErrDependencyCycle indicates scripts that feed each other in a loop.
	ErrDependencyCycle = errors.New("scripts depend on each other in a cycle")

	// ErrNoLanguage indicates a node without a script block in any recognised language.
	ErrNoLanguage = errors.New("node contains no enabled script language")

	// ErrNoExecutor indicates a recognised language without a configured runner.
	ErrNoExecutor = errors.New("no runner configured for script language")

	// ErrMissingVariable indicates a script requesting a variable the host does not define.
	ErrMissingVariable = errors.New("requested variable is not configured")

	// ErrNoScript indicates a selection that holds no runnable script.
	ErrNoScript = errors.New("no valid script selected")
)

// LeafError reports a plain node that could not be turned into a port value.
type LeafError struct {
	ScriptID string
	Port     string
	LeafID   string
	Err      error
}

func (e *LeafError) Error() string {
	return fmt.Sprintf("input %s of script %s from node %s: %v", e.Port, e.ScriptID, e.LeafID, e.Err)
}

func (e *LeafError) Unwrap() error {
	return e.Err
}

// ScriptError reports the script that stopped a run.
type ScriptError struct {
	ScriptID string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.ScriptID, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Is matches ErrScriptFailed for every script error, whatever stopped the script.
func (e *ScriptError) Is(target error) bool {
	return target == ErrScriptFailed
}
