package web_test

import (
	"errors"
	"testing"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRunRequest_Validation(t *testing.T) {
	t.Parallel()

	v := validator.New()

	tests := []struct {
		name      string
		request   web.CreateRunRequest
		wantErr   bool
		errFields []string
	}{
		{
			name:    "valid request",
			request: web.CreateRunRequest{Canvas: "flow.canvas", NodeID: "script"},
		},
		{
			name:    "valid request with mode",
			request: web.CreateRunRequest{Canvas: "flow.canvas", NodeID: "script", Mode: "simple"},
		},
		{
			name:      "missing canvas",
			request:   web.CreateRunRequest{NodeID: "script"},
			wantErr:   true,
			errFields: []string{"Canvas"},
		},
		{
			name:      "missing node and bad mode",
			request:   web.CreateRunRequest{Canvas: "flow.canvas", Mode: "batch"},
			wantErr:   true,
			errFields: []string{"NodeID", "Mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Struct(tt.request)
			if !tt.wantErr {
				assert.NoError(t, err)

				return
			}

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))

			fields := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				fields = append(fields, fieldErr.Field())
			}

			assert.ElementsMatch(t, tt.errFields, fields)
		})
	}
}

func TestCreateRunRequest_RunRequest(t *testing.T) {
	t.Parallel()

	request := web.CreateRunRequest{Canvas: "flow.canvas", NodeID: "script", Mode: "workflow"}.RunRequest()

	assert.Equal(t, models.RunRequest{
		CanvasPath: "flow.canvas",
		NodeID:     "script",
		Mode:       models.ExecutionModeWorkflow,
	}, request)
}

func TestTransformWorkflowResponse(t *testing.T) {
	t.Parallel()

	response := web.TransformWorkflowResponse(&models.WorkflowNodes{
		SettingsNode: models.Node{ID: "script"},
	})

	assert.Equal(t, "script", response.SettingsNodeID)
	assert.Empty(t, response.ConnectionNodeIDs)
	assert.Nil(t, response.GroupNodeID)
}
