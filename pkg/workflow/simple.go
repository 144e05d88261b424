package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/protocol"
	"github.com/dukex/canvasblocks/pkg/vault"
)

// Simple runs a lone script against the node placed on top of it and the nodes pointing
// at it.
type Simple struct {
	executor ScriptExecutor
	vault    vault.Vault
	host     protocol.Host
}

func NewSimple(executor ScriptExecutor, v vault.Vault, host protocol.Host) *Simple {
	return &Simple{executor: executor, vault: v, host: host}
}

// Run uses selectedID as the script when it holds one, otherwise the nearest node
// overlapping it; the other of the two becomes the parameter.
func (s *Simple) Run(ctx context.Context, doc canvas.Document, selectedID string) (*Result, error) {
	result := &Result{Mode: models.ExecutionModeSimple}

	selected, ok := doc.Node(selectedID)
	if !ok {
		return result, fmt.Errorf("%w: node %s does not exist", ErrNoScript, selectedID)
	}

	other, hasOther := canvas.ClosestInBounds(doc, selected.Box(), func(node models.Node) bool {
		return node.ID == selectedID
	})

	script, parameter := selected, other
	hasParameter := hasOther

	if !blocks.NodeContainsScript(ctx, s.vault, selected) {
		if !hasOther || !blocks.NodeContainsScript(ctx, s.vault, other) {
			s.host.Notice(ctx, "No valid scripts are selected")

			return result, ErrNoScript
		}

		script, parameter = other, selected
		hasParameter = true
	}

	var parameterData any = map[string]any{}
	if hasParameter {
		parameterData = parameter
	}

	payload := map[string]any{
		"parameter_data":   parameterData,
		"script_data":      script,
		"arrow_parameters": arrowParameters(doc, script.ID),
		"has_parameter":    hasParameter,
	}

	ok, err := s.executor.Execute(ctx, doc, script, payload, models.ExecutionModeSimple, nil)
	if err != nil {
		result.FailedScriptID = script.ID

		return result, &ScriptError{ScriptID: script.ID, Err: err}
	}

	if !ok {
		result.FailedScriptID = script.ID

		return result, &ScriptError{ScriptID: script.ID, Err: ErrScriptFailed}
	}

	result.Executed = []string{script.ID}
	result.Success = true

	return result, nil
}

// arrowParameters returns, in document order, the nodes with an edge pointing at scriptID.
func arrowParameters(doc canvas.Document, scriptID string) []models.Node {
	var sources []string
	for _, edge := range canvas.IncomingEdges(doc, scriptID) {
		sources = append(sources, edge.FromNode)
	}

	nodes := []models.Node{}

	for _, node := range doc.Nodes() {
		if slices.Contains(sources, node.ID) {
			nodes = append(nodes, node)
		}
	}

	return nodes
}
