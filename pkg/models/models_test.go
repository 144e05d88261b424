package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalKeepsUnknownFields(t *testing.T) {
	raw := `{"id":"a","type":"text","x":10,"y":20,"width":100,"height":50,"text":"hi","styleAttributes":{"shape":"pill"}}`

	var node Node
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.Equal(t, "a", node.ID)
	assert.Equal(t, NodeTypeText, node.Type)
	assert.InDelta(t, 10.0, node.X, 0)
	assert.Equal(t, "hi", node.Text)
	require.Contains(t, node.Extra, "styleAttributes")

	encoded, err := json.Marshal(node)
	require.NoError(t, err)

	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(encoded, &roundTrip))
	assert.Equal(t, map[string]any{"shape": "pill"}, roundTrip["styleAttributes"])
	assert.Equal(t, "hi", roundTrip["text"])
}

func TestEdge_UnmarshalKeepsUnknownFields(t *testing.T) {
	raw := `{"id":"e1","fromNode":"a","toNode":"b","toEnd":"arrow"}`

	var edge Edge
	require.NoError(t, json.Unmarshal([]byte(raw), &edge))

	assert.Equal(t, "a", edge.FromNode)
	assert.Equal(t, "b", edge.ToNode)
	assert.JSONEq(t, `"arrow"`, string(edge.Extra["toEnd"]))
}

func TestNode_Validation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(Node{ID: "a", Type: NodeTypeGroup, Width: 10, Height: 10})
	require.NoError(t, err)

	err = validate.Struct(Node{ID: "a", Type: "shape"})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	assert.Equal(t, "Type", validationErrors[0].Field())
	assert.Equal(t, "oneof", validationErrors[0].Tag())
}

func TestBoundingBox_Geometry(t *testing.T) {
	outer := Node{X: 0, Y: 0, Width: 100, Height: 100}.Box()
	inner := Node{X: 10, Y: 10, Width: 20, Height: 20}.Box()
	touching := Node{X: 100, Y: 0, Width: 10, Height: 10}.Box()
	far := Node{X: 500, Y: 500, Width: 10, Height: 10}.Box()

	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.True(t, outer.Overlaps(touching))
	assert.False(t, outer.Overlaps(far))

	union := inner.Union(touching)
	assert.Equal(t, BoundingBox{MinX: 10, MinY: 0, MaxX: 110, MaxY: 30}, union)

	assert.InDelta(t, 10+10+70+70, outer.EdgeDistance(inner), 0.0001)
	assert.InDelta(t, 0, outer.CenterDistance(Node{X: 40, Y: 40, Width: 20, Height: 20}.Box()), 0.0001)
}

func TestWorkflowSettings_PortsFollowDeclarationOrder(t *testing.T) {
	settings := WorkflowSettings{
		IOConnections: map[string]IOConnection{
			"b": {Direction: PortDirectionOutput},
			"a": {Direction: PortDirectionInput},
			"c": {Direction: PortDirectionInput},
		},
		PortOrder: []string{"b", "a", "missing"},
	}

	ports := settings.Ports()
	require.Len(t, ports, 3)
	assert.Equal(t, []string{"b", "a"}, ports[:2])
	assert.Equal(t, "c", ports[2])
}

func TestWorkflowSettings_IsWorkflow(t *testing.T) {
	assert.True(t, WorkflowSettings{}.IsWorkflow())
	assert.True(t, WorkflowSettings{Type: SettingsTypeWorkflow}.IsWorkflow())
	assert.False(t, WorkflowSettings{Type: SettingsTypeSimple}.IsWorkflow())
}

func TestWorkflowNodes_MemberIDs(t *testing.T) {
	group := Node{ID: "g"}
	nodes := WorkflowNodes{
		SettingsNode:    Node{ID: "s"},
		ConnectionNodes: []Node{{ID: "c1"}, {ID: "c2"}},
		GroupNode:       &group,
	}

	assert.Equal(t, []string{"s", "c1", "c2", "g"}, nodes.MemberIDs())

	nodes.GroupNode = nil
	assert.Equal(t, []string{"s", "c1", "c2"}, nodes.MemberIDs())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "script_out", PortKey("script", "out"))
	assert.Equal(t, "leaf_NODE", LeafKey("leaf"))
}

func TestExecution_Finish(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	execution := &Execution{ID: "x", Status: ExecutionStatusRunning, StartedAt: started}

	assert.Zero(t, execution.Duration())

	execution.Finish(errors.New("boom"), started.Add(2*time.Second))
	assert.Equal(t, ExecutionStatusFailed, execution.Status)
	assert.Equal(t, "boom", execution.Error)
	assert.Equal(t, 2*time.Second, execution.Duration())

	execution.Finish(nil, started.Add(time.Second))
	assert.Equal(t, ExecutionStatusSuccess, execution.Status)
}
