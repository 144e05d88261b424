// Package file stores run records as JSON files below a root directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/canvasblocks/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root       string
	executions *ExecutionRepository
}

// NewPersistence accepts a plain directory or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		executions: NewExecutionRepository(cleanRoot),
	}
}

func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executions
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return err
	}

	return nil
}

// Close is a no-op for file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)
