package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/models"
)

// ScriptInGroup returns the script node nearest the centre of group that carries both a
// script and a settings block.
func (s *Scheduler) ScriptInGroup(ctx context.Context, doc canvas.Document, groupID string) (models.Node, error) {
	group, ok := doc.Node(groupID)
	if !ok {
		return models.Node{}, fmt.Errorf("%w: group %s does not exist", ErrNoScript, groupID)
	}

	script, ok := canvas.ClosestInBounds(doc, group.Box(), func(node models.Node) bool {
		if node.ID == group.ID {
			return true
		}

		return !blocks.NodeContainsScript(ctx, s.vault, node) ||
			!blocks.NodeContains(ctx, s.vault, node, blocks.SettingsTag)
	})
	if !ok {
		return models.Node{}, fmt.Errorf("%w: group %s holds no workflow script", ErrNoScript, groupID)
	}

	return script, nil
}

// RunFromGroup starts a workflow run from the script found inside a group.
func (s *Scheduler) RunFromGroup(ctx context.Context, doc canvas.Document, groupID string) (*Result, error) {
	script, err := s.ScriptInGroup(ctx, doc, groupID)
	if err != nil {
		return &Result{Mode: models.ExecutionModeWorkflow}, err
	}

	return s.Run(ctx, doc, script)
}
