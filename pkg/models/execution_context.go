package models

import "time"

// ExecutionMode is the protocol mode a run was executed in.
type ExecutionMode string

const (
	ExecutionModeSimple   ExecutionMode = "simple"
	ExecutionModeWorkflow ExecutionMode = "workflow"
)

// ExecutionStatus is the lifecycle state of one run.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// Execution records one run started from an anchor node of a canvas.
type Execution struct {
	ID             string          `json:"id"`
	CanvasPath     string          `json:"canvas_path"`
	AnchorID       string          `json:"anchor_id"`
	Mode           ExecutionMode   `json:"mode"`
	Status         ExecutionStatus `json:"status"`
	ScriptIDs      []string        `json:"script_ids"`
	FailedScriptID string          `json:"failed_script_id,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// Finish marks the execution done with the given outcome.
func (e *Execution) Finish(err error, at time.Time) {
	e.FinishedAt = &at

	if err != nil {
		e.Status = ExecutionStatusFailed
		e.Error = err.Error()

		return
	}

	e.Status = ExecutionStatusSuccess
}

// Duration returns how long the run took, or zero while it is still running.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt == nil {
		return 0
	}

	return e.FinishedAt.Sub(e.StartedAt)
}
