package models

// RunRequest asks for the workflow or script anchored at NodeID of a canvas to run. An
// empty Mode runs the workflow when one is found and falls back to simple mode.
type RunRequest struct {
	CanvasPath string        `json:"canvas"         validate:"required"`
	NodeID     string        `json:"node_id"        validate:"required"`
	Mode       ExecutionMode `json:"mode,omitempty" validate:"omitempty,oneof=simple workflow"`
}
