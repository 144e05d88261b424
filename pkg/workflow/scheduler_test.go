package workflow

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	textInput  = `{"type": "workflow", "ioConnections": {"n": {"direction": "input", "type": "text"}}}`
	imageInput = `{"type": "workflow", "ioConnections": {"img": {"direction": "input", "type": "image"}}}`
	fileInput  = `{"type": "workflow", "ioConnections": {"doc": {"direction": "input", "type": "file"}}}`
	producerX  = `{"type": "workflow", "ioConnections": {"x": {"direction": "output", "type": "text"}}}`
	passX      = `{"type": "workflow", "ioConnections": {"x": {"direction": "input", "type": "text"}, "y": {"direction": "output", "type": "text"}}}`
	consumerY  = `{"type": "workflow", "ioConnections": {"y": {"direction": "input", "type": "text"}}}`
)

func TestRun_LeafValueReachesInput(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("S", 0, 0, textInput),
			pointNode("cpS_n", "n", "S", 0, 420),
			textNode("T", "hello", -400, 420),
		},
		Edges: []models.Edge{edge("e1", "T", "cpS_n")},
	})

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"S"}, result.Executed)
	assert.Equal(t, "T_NODE", result.Graph.DataFlow["S_n"])
	assert.Equal(t, "hello", result.Graph.ExecutionData["T_NODE"])

	c := env.runner.callFor(t, "S")
	assert.Equal(t, map[string]any{"n": "hello"}, inData(c))
	assert.Equal(t, "workflow", c.Payload["execution_type"])
	assert.Contains(t, c.Source, WorkflowTrailer)
}

func TestRun_GroupLeafLeavesTextInputUnset(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("S", 0, 0, textInput),
			pointNode("cpS_n", "n", "S", 0, 420),
			{ID: "G", Type: models.NodeTypeGroup, X: -800, Y: 400, Width: 300, Height: 200, Label: "inputs"},
		},
		Edges: []models.Edge{edge("e1", "G", "cpS_n")},
	})

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "G_NODE", result.Graph.DataFlow["S_n"])
	assert.NotContains(t, result.Graph.ExecutionData, "G_NODE")
	assert.Empty(t, inData(env.runner.callFor(t, "S")))
}

func TestRun_ProducerRunsFirstAndFeedsConsumer(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("A", 0, 0, producerX),
			pointNode("cpA_x", "x", "A", 200, 420),
			scriptNode("B", 800, 0, passX),
			pointNode("cpB_x", "x", "B", 800, 420),
			pointNode("cpB_y", "y", "B", 1000, 420),
		},
		Edges: []models.Edge{edge("e1", "cpA_x", "cpB_x")},
	})
	env.runner.returns("A", map[string]any{"x": "5"})

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "B"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, env.runner.executed())
	assert.Equal(t, []string{"A", "B"}, result.Executed)
	assert.Equal(t, "A_x", result.Graph.DataFlow["B_x"])
	assert.Equal(t, []string{"A"}, result.Graph.Producers("B"))

	b := env.runner.callFor(t, "B")
	assert.Equal(t, map[string]any{"x": "5"}, inData(b))
	assert.Equal(t, map[string]any{"y": nil}, outData(b))
}

func TestRun_FailureStopsDownstreamScripts(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("A", 0, 0, producerX),
			pointNode("cpA_x", "x", "A", 200, 420),
			scriptNode("B", 800, 0, passX),
			pointNode("cpB_x", "x", "B", 800, 420),
			pointNode("cpB_y", "y", "B", 1000, 420),
			scriptNode("C", 1600, 0, consumerY),
			pointNode("cpC_y", "y", "C", 1600, 420),
		},
		Edges: []models.Edge{
			edge("e1", "cpA_x", "cpB_x"),
			edge("e2", "cpB_y", "cpC_y"),
		},
	})
	env.runner.returns("A", map[string]any{"x": "5"})
	env.runner.failing["B"] = true

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "C"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrScriptFailed)

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, "B", scriptErr.ScriptID)

	assert.False(t, result.Success)
	assert.Equal(t, "B", result.FailedScriptID)
	assert.Equal(t, []string{"A"}, result.Executed)
	assert.Equal(t, []string{"A", "B"}, env.runner.executed())
	assert.Contains(t, env.host.notices, stoppedNotice)
	assert.Contains(t, env.host.notices, "An error has occurred while running this script. Check the log for more detail.")
}

func TestRun_TextLeafIntoImagePortFails(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("S", 0, 0, imageInput),
			pointNode("cpS_img", "img", "S", 0, 420),
			textNode("T", "not an image", -400, 420),
		},
		Edges: []models.Edge{edge("e1", "T", "cpS_img")},
	})

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.ErrorIs(t, err, ErrLeafTypeMismatch)

	var leafErr *LeafError
	require.ErrorAs(t, err, &leafErr)
	assert.Equal(t, "S", leafErr.ScriptID)
	assert.Equal(t, "img", leafErr.Port)
	assert.Equal(t, "T", leafErr.LeafID)

	assert.Empty(t, env.runner.executed())
	assert.NotEmpty(t, env.host.notices)
}

func TestRun_ImageLeafIsBase64(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("S", 0, 0, imageInput),
			pointNode("cpS_img", "img", "S", 0, 420),
			{ID: "P", Type: models.NodeTypeFile, X: -400, Y: 420, Width: 200, Height: 200, File: "pics/dot.png"},
		},
		Edges: []models.Edge{edge("e1", "P", "cpS_img")},
	})
	png := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	require.NoError(t, env.vault.Write(t.Context(), "pics/dot.png", string(png)))

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	c := env.runner.callFor(t, "S")
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), inData(c)["img"])
}

func TestRun_OtherPortTypesReceiveNodeJSON(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("S", 0, 0, fileInput),
			pointNode("cpS_doc", "doc", "S", 0, 420),
			{ID: "L", Type: models.NodeTypeLink, X: -400, Y: 420, Width: 200, Height: 60, URL: "https://example.com"},
		},
		Edges: []models.Edge{edge("e1", "L", "cpS_doc")},
	})

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	value, ok := inData(env.runner.callFor(t, "S"))["doc"].(string)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"L","type":"link","x":-400,"y":420,"width":200,"height":60,"url":"https://example.com"}`, value)
}

func TestRun_UnwiredInputIsOmitted(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("B", 0, 0, passX),
			pointNode("cpB_x", "x", "B", 0, 420),
			pointNode("cpB_y", "y", "B", 200, 420),
		},
	})

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "B"))
	require.NoError(t, err)
	assert.True(t, result.Success)

	c := env.runner.callFor(t, "B")
	assert.Empty(t, inData(c))
	assert.Equal(t, map[string]any{"y": nil}, outData(c))
}

func TestRun_CycleTerminatesDiscovery(t *testing.T) {
	loop := `{"type": "workflow", "ioConnections": {"in": {"direction": "input", "type": "text"}, "out": {"direction": "output", "type": "text"}}}`
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("A", 0, 0, loop),
			pointNode("cpA_in", "in", "A", 0, 420),
			pointNode("cpA_out", "out", "A", 200, 420),
			scriptNode("B", 800, 0, loop),
			pointNode("cpB_in", "in", "B", 800, 420),
			pointNode("cpB_out", "out", "B", 1000, 420),
		},
		Edges: []models.Edge{
			edge("e1", "cpA_out", "cpB_in"),
			edge("e2", "cpB_out", "cpA_in"),
		},
	})

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "A"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, result.Executed)
}

// diamondCanvas wires A into both B and D, and B into D. Breadth-first discovery from D
// finds A before B, so reverse discovery runs B before its producer A.
func diamondCanvas() models.Canvas {
	sink := `{"type": "workflow", "ioConnections": {"p": {"direction": "input", "type": "text"}, "q": {"direction": "input", "type": "text"}}}`

	return models.Canvas{
		Nodes: []models.Node{
			scriptNode("D", 1600, 0, sink),
			pointNode("cpD_p", "p", "D", 1600, 420),
			pointNode("cpD_q", "q", "D", 1600, 480),
			scriptNode("A", 0, 0, producerX),
			pointNode("cpA_x", "x", "A", 200, 420),
			scriptNode("B", 800, 0, passX),
			pointNode("cpB_x", "x", "B", 800, 420),
			pointNode("cpB_y", "y", "B", 1000, 420),
		},
		Edges: []models.Edge{
			edge("e1", "cpA_x", "cpD_p"),
			edge("e2", "cpB_y", "cpD_q"),
			edge("e3", "cpA_x", "cpB_x"),
		},
	}
}

func TestRun_ReverseDiscoveryOrder(t *testing.T) {
	env := newTestEnv(t, diamondCanvas())

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "D"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "D"}, result.Executed)
}

func TestRun_TopologicalOrder(t *testing.T) {
	env := newTestEnv(t, diamondCanvas(), WithOrdering(OrderTopological))
	env.runner.returns("A", map[string]any{"x": "1"})
	env.runner.returns("B", map[string]any{"y": "2"})

	result, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "D"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "D"}, result.Executed)
	assert.Equal(t, map[string]any{"x": "1"}, inData(env.runner.callFor(t, "B")))
	assert.Equal(t, map[string]any{"p": "1", "q": "2"}, inData(env.runner.callFor(t, "D")))
}

func TestRun_TopologicalRejectsCycles(t *testing.T) {
	loop := `{"type": "workflow", "ioConnections": {"in": {"direction": "input", "type": "text"}, "out": {"direction": "output", "type": "text"}}}`
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("A", 0, 0, loop),
			pointNode("cpA_in", "in", "A", 0, 420),
			pointNode("cpA_out", "out", "A", 200, 420),
			scriptNode("B", 800, 0, loop),
			pointNode("cpB_in", "in", "B", 800, 420),
			pointNode("cpB_out", "out", "B", 1000, 420),
		},
		Edges: []models.Edge{
			edge("e1", "cpA_out", "cpB_in"),
			edge("e2", "cpB_out", "cpA_in"),
		},
	}, WithOrdering(OrderTopological))

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "A"))
	require.ErrorIs(t, err, ErrDependencyCycle)
	assert.Empty(t, env.runner.executed())
}

func TestRun_HealsUntypedSettings(t *testing.T) {
	untyped := `{"ioConnections": {"n": {"direction": "input", "type": "text"}}}`
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{scriptNode("S", 0, 0, untyped)},
	})

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	assert.Contains(t, env.host.notices, healedNotice)
	assert.True(t, env.doc.Dirty())
	assert.Contains(t, env.node(t, "S").Text, `"type": "workflow"`)
	assert.Contains(t, env.runner.callFor(t, "S").Source, `out_data = out_data`)
}

func TestRun_HealsScriptFile(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			{ID: "S", Type: models.NodeTypeFile, X: 0, Y: 0, Width: 400, Height: 400, File: "scripts/s.md"},
		},
	})
	text := "```canvasblocksettings\n{\"type\": \"custom\", \"ioConnections\": {}}\n```\n" + pythonBlock
	require.NoError(t, env.vault.Write(t.Context(), "scripts/s.md", text))

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	healed, err := env.vault.Read(t.Context(), "scripts/s.md")
	require.NoError(t, err)
	assert.Contains(t, healed, `"type": "workflow"`)
	assert.Contains(t, env.host.notices, healedNotice)
	assert.False(t, env.doc.Dirty())
}

func TestRun_SimpleSettingsAreLeftAlone(t *testing.T) {
	simple := `{"type": "simple", "ioConnections": {}}`
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{scriptNode("S", 0, 0, simple)},
	})

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	assert.NotContains(t, env.host.notices, healedNotice)
	assert.False(t, env.doc.Dirty())
}

func TestRun_ScriptMessagesReachTheCanvas(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("S", 0, 0, textInput),
			textNode("target", "old", 900, 0),
		},
	})
	env.runner.messages["S"] = append(env.runner.messages["S"],
		protocol.ModifyTextNode{ID: "target", Text: "new"},
	)

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "S"))
	require.NoError(t, err)

	assert.Equal(t, "new", env.node(t, "target").Text)
	assert.True(t, env.doc.Dirty())
}

func TestRunFromGroup(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			{ID: "G", Type: models.NodeTypeGroup, X: -20, Y: -20, Width: 440, Height: 520, Label: models.WorkflowGroupLabel},
			scriptNode("S", 0, 0, textInput),
			pointNode("cpS_n", "n", "S", 0, 420),
		},
	})

	script, err := env.scheduler.ScriptInGroup(t.Context(), env.doc, "G")
	require.NoError(t, err)
	assert.Equal(t, "S", script.ID)

	result, err := env.scheduler.RunFromGroup(t.Context(), env.doc, "G")
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, result.Executed)
}

func TestRunFromGroup_EmptyGroup(t *testing.T) {
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			{ID: "G", Type: models.NodeTypeGroup, X: 0, Y: 0, Width: 100, Height: 100, Label: models.WorkflowGroupLabel},
		},
	})

	_, err := env.scheduler.RunFromGroup(t.Context(), env.doc, "G")
	require.ErrorIs(t, err, ErrNoScript)
}

type recordingObserver struct {
	started  []string
	finished map[string]error
}

func (o *recordingObserver) ScriptStarted(ctx context.Context, script models.Node) context.Context {
	o.started = append(o.started, script.ID)

	return ctx
}

func (o *recordingObserver) ScriptFinished(_ context.Context, script models.Node, err error) {
	o.finished[script.ID] = err
}

func TestRun_NotifiesObserver(t *testing.T) {
	observer := &recordingObserver{finished: map[string]error{}}
	env := newTestEnv(t, models.Canvas{
		Nodes: []models.Node{
			scriptNode("A", 0, 0, producerX),
			pointNode("cpA_x", "x", "A", 200, 420),
			scriptNode("B", 800, 0, passX),
			pointNode("cpB_x", "x", "B", 800, 420),
		},
		Edges: []models.Edge{edge("e1", "cpA_x", "cpB_x")},
	}, WithObserver(observer))
	env.runner.failing["B"] = true

	_, err := env.scheduler.Run(t.Context(), env.doc, env.node(t, "B"))
	require.Error(t, err)

	assert.Equal(t, []string{"A", "B"}, observer.started)
	assert.NoError(t, observer.finished["A"])
	assert.ErrorIs(t, observer.finished["B"], ErrScriptFailed)
}
