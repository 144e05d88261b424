package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/persistence"
)

// ExecutionRepository keeps one <id>.json file per run under <root>/executions.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (r *ExecutionRepository) dir() string {
	return filepath.Join(r.root, "executions")
}

// SaveExecution writes the record through a temporary file so readers never see a
// partial document.
func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.Execution) error {
	if err := persistence.ValidateExecutionID(execution.ID); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if err := os.MkdirAll(r.dir(), 0o750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	tmp, err := os.CreateTemp(r.dir(), execution.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(r.dir(), execution.ID+".json")); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetExecution(_ context.Context, id string) (*models.Execution, error) {
	if err := persistence.ValidateExecutionID(id); err != nil {
		return nil, persistence.NewExecutionError("Get", id, err)
	}

	data, err := os.ReadFile(filepath.Join(r.dir(), id+".json")) // #nosec G304 -- id is validated
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewExecutionError("Get", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.Execution{}, nil
		}

		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	executions := []*models.Execution{}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		execution, err := r.GetExecution(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip invalid files
			continue
		}

		if filter.Matches(execution) {
			executions = append(executions, execution)
		}
	}

	slices.SortFunc(executions, func(a, b *models.Execution) int {
		return cmp.Or(b.StartedAt.Compare(a.StartedAt), strings.Compare(a.ID, b.ID))
	})

	if limit := filter.EffectiveLimit(); len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

var _ persistence.ExecutionRepository = (*ExecutionRepository)(nil)
