// Package web provides HTTP request and response types for the run API.
package web

import "github.com/dukex/canvasblocks/pkg/models"

// CreateRunRequest is the body of POST /runs.
type CreateRunRequest struct {
	Canvas string `json:"canvas"         validate:"required"`
	NodeID string `json:"node_id"        validate:"required"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=simple workflow"`
}

// RunRequest converts the body into the request the service executes.
func (r CreateRunRequest) RunRequest() models.RunRequest {
	return models.RunRequest{
		CanvasPath: r.Canvas,
		NodeID:     r.NodeID,
		Mode:       models.ExecutionMode(r.Mode),
	}
}

// ListRunsResponse is the body of GET /runs.
type ListRunsResponse struct {
	Runs  []*models.Execution `json:"runs"`
	Count int                 `json:"count"`
}

// WorkflowResponse describes the nodes a workflow is made of.
type WorkflowResponse struct {
	SettingsNodeID    string   `json:"settings_node_id"`
	ConnectionNodeIDs []string `json:"connection_node_ids"`
	GroupNodeID       *string  `json:"group_node_id,omitempty"`
}

// TransformWorkflowResponse reduces located workflow nodes to their ids.
func TransformWorkflowResponse(nodes *models.WorkflowNodes) WorkflowResponse {
	response := WorkflowResponse{
		SettingsNodeID:    nodes.SettingsNode.ID,
		ConnectionNodeIDs: make([]string, 0, len(nodes.ConnectionNodes)),
	}

	for _, node := range nodes.ConnectionNodes {
		response.ConnectionNodeIDs = append(response.ConnectionNodeIDs, node.ID)
	}

	if nodes.GroupNode != nil {
		groupID := nodes.GroupNode.ID
		response.GroupNodeID = &groupID
	}

	return response
}
