package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/vault"
)

// Layout sizes the nodes placed by AddWorkflowScript.
type Layout struct {
	ScriptWidth      float64
	ScriptHeight     float64
	ConnectionWidth  float64
	ConnectionHeight float64
	Padding          float64
}

var DefaultLayout = Layout{
	ScriptWidth:      400,
	ScriptHeight:     400,
	ConnectionWidth:  200,
	ConnectionHeight: 60,
	Padding:          20,
}

// Placement lists the nodes created for one workflow script.
type Placement struct {
	ScriptID      string
	ConnectionIDs []string
	GroupID       string
}

// AddWorkflowScript places the script file at (x, y) with one connection point per port
// below it, inputs on the left and outputs on the right, and draws the workflow group
// around them.
func AddWorkflowScript(ctx context.Context, doc canvas.Document, v vault.Vault, scriptPath string,
	x, y float64, layout Layout,
) (*Placement, error) {
	text, err := v.Read(ctx, scriptPath)
	if err != nil {
		return nil, err
	}

	settings, err := blocks.ParseSettings(text)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", scriptPath, err)
	}

	placement := &Placement{}
	placement.ScriptID = doc.CreateFileNode(scriptPath, canvas.Placement{
		X: x, Y: y, Width: layout.ScriptWidth, Height: layout.ScriptHeight,
	})

	var inputs, outputs int

	for _, name := range settings.Ports() {
		output := settings.IOConnections[name].Direction == models.PortDirectionOutput

		row, offset := inputs, 0.0
		if output {
			row, offset = outputs, layout.ScriptWidth-layout.ConnectionWidth
		}

		id := doc.CreateTextNode(
			blocks.ConnectionPointText(models.ConnectionPoint{Name: name, ScriptID: placement.ScriptID}),
			canvas.Placement{
				X:      x + offset,
				Y:      y + layout.ScriptHeight + layout.Padding + layout.ConnectionHeight*float64(row),
				Width:  layout.ConnectionWidth,
				Height: layout.ConnectionHeight,
			},
		)
		placement.ConnectionIDs = append(placement.ConnectionIDs, id)

		if output {
			outputs++
		} else {
			inputs++
		}
	}

	placement.GroupID = doc.CreateGroupNode(models.WorkflowGroupLabel, canvas.Placement{
		X:      x - layout.Padding,
		Y:      y - layout.Padding,
		Width:  layout.ScriptWidth + 2*layout.Padding,
		Height: 3*layout.Padding + layout.ScriptHeight + layout.ConnectionHeight*float64(max(inputs, outputs)),
	})

	doc.RequestSave()

	return placement, nil
}

// WorkflowScripts lists the files under folder that carry a settings block.
func WorkflowScripts(ctx context.Context, v vault.Vault, folder string) ([]string, error) {
	files, err := v.List(ctx, folder)
	if err != nil {
		return nil, err
	}

	var scripts []string

	for _, file := range files {
		if !strings.HasSuffix(file, ".md") {
			continue
		}

		text, err := v.Read(ctx, file)
		if err != nil {
			return nil, err
		}

		if blocks.Contains(text, blocks.SettingsTag) {
			scripts = append(scripts, file)
		}
	}

	return scripts, nil
}
