package persistence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExecutionNotFound indicates no run record exists for the given id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidExecutionID indicates an id that cannot be used as a storage key.
	ErrInvalidExecutionID = errors.New("invalid execution id")
)

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "Get", "Save")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsExecutionNotFound checks if an error indicates a run record was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// ValidateExecutionID rejects ids that are empty or could escape a storage directory.
func ValidateExecutionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidExecutionID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidExecutionID, id)
	}

	return nil
}
