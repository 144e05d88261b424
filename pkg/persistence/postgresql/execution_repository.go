package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/persistence"
)

// ExecutionRepository handles run record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const selectExecution = `
	SELECT id, canvas_path, anchor_id, mode, status, script_ids,
		   failed_script_id, error_message, started_at, finished_at
	FROM executions
`

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.Execution) error {
	scriptIDs := execution.ScriptIDs
	if scriptIDs == nil {
		scriptIDs = []string{}
	}

	scriptIDsJSON, err := json.Marshal(scriptIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal script ids: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, canvas_path, anchor_id, mode, status, script_ids,
			failed_script_id, error_message, started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			script_ids = EXCLUDED.script_ids,
			failed_script_id = EXCLUDED.failed_script_id,
			error_message = EXCLUDED.error_message,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.CanvasPath,
		execution.AnchorID,
		execution.Mode,
		execution.Status,
		scriptIDsJSON,
		nullString(execution.FailedScriptID),
		nullString(execution.Error),
		execution.StartedAt,
		execution.FinishedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, selectExecution+" WHERE id = $1", id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("Get", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.CanvasPath != "" {
		args = append(args, filter.CanvasPath)
		conditions = append(conditions, fmt.Sprintf("canvas_path = $%d", len(args)))
	}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := selectExecution
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY started_at DESC, id ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed to close rows", "error", err)
		}
	}()

	executions := []*models.Execution{}

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*models.Execution, error) {
	var (
		execution      models.Execution
		scriptIDsJSON  []byte
		failedScriptID sql.NullString
		errorMessage   sql.NullString
		finishedAt     sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.CanvasPath,
		&execution.AnchorID,
		&execution.Mode,
		&execution.Status,
		&scriptIDsJSON,
		&failedScriptID,
		&errorMessage,
		&execution.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scriptIDsJSON, &execution.ScriptIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal script ids: %w", err)
	}

	execution.FailedScriptID = failedScriptID.String
	execution.Error = errorMessage.String

	if finishedAt.Valid {
		finished := finishedAt.Time
		execution.FinishedAt = &finished
	}

	return &execution, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

var _ persistence.ExecutionRepository = (*ExecutionRepository)(nil)
