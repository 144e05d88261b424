// Package persistence stores the records of canvas runs.
package persistence

import (
	"context"

	"github.com/dukex/canvasblocks/pkg/models"
)

// DefaultListLimit caps ListExecutions when the filter sets no limit.
const DefaultListLimit = 100

// ExecutionFilter narrows ListExecutions. Zero fields match everything.
type ExecutionFilter struct {
	CanvasPath string
	Status     models.ExecutionStatus
	Limit      int
}

// Matches reports whether execution passes the filter, ignoring Limit.
func (f ExecutionFilter) Matches(execution *models.Execution) bool {
	if f.CanvasPath != "" && execution.CanvasPath != f.CanvasPath {
		return false
	}

	if f.Status != "" && execution.Status != f.Status {
		return false
	}

	return true
}

// EffectiveLimit returns Limit, or DefaultListLimit when Limit is not positive.
func (f ExecutionFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}

	return f.Limit
}

// ExecutionRepository stores run records. SaveExecution inserts or replaces by id;
// ListExecutions returns the most recently started runs first.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.Execution) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*models.Execution, error)
}

type Persistence interface {
	Executions() ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
