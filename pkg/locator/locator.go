// Package locator resolves the workflow a canvas node belongs to.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/vault"
)

// ErrWorkflowNotFound indicates no workflow can be resolved from the anchor node.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Finder resolves WorkflowNodes from any node of a workflow.
type Finder interface {
	Locate(ctx context.Context, doc canvas.Document, anchorID string) (*models.WorkflowNodes, error)
}

// Locator finds workflows by reading the blocks embedded in canvas nodes.
type Locator struct {
	vault  vault.Vault
	logger *slog.Logger
}

func New(v vault.Vault, logger *slog.Logger) *Locator {
	return &Locator{vault: v, logger: logger.With("module", "locator")}
}

// Locate resolves the workflow anchorID belongs to. The anchor may be the script node
// itself, one of its connection points or the marker group drawn around it.
func (l *Locator) Locate(ctx context.Context, doc canvas.Document, anchorID string) (*models.WorkflowNodes, error) {
	anchor, ok := doc.Node(anchorID)
	if !ok {
		return nil, fmt.Errorf("%w: anchor %s does not exist", ErrWorkflowNotFound, anchorID)
	}

	settingsID, err := l.settingsNodeID(ctx, doc, anchor)
	if err != nil {
		return nil, err
	}

	return l.FromSettingsNode(ctx, doc, settingsID)
}

func (l *Locator) settingsNodeID(ctx context.Context, doc canvas.Document, anchor models.Node) (string, error) {
	settings, err := blocks.NodeSettings(ctx, l.vault, anchor)

	switch {
	case err == nil && settings.IsWorkflow():
		return anchor.ID, nil
	case err != nil && !errors.Is(err, blocks.ErrBlockNotFound):
		l.logger.DebugContext(ctx, "Ignoring malformed settings block", "node_id", anchor.ID, "error", err)

		return "", fmt.Errorf("%w: %w", ErrWorkflowNotFound, err)
	}

	switch anchor.Type {
	case models.NodeTypeText:
		point, err := blocks.ParseConnectionPoint(anchor.Text)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrWorkflowNotFound, err)
		}

		return point.ScriptID, nil
	case models.NodeTypeGroup:
		if anchor.Label != models.WorkflowGroupLabel {
			return "", fmt.Errorf("%w: group %s is not a workflow group", ErrWorkflowNotFound, anchor.ID)
		}

		script, ok := canvas.ClosestInBounds(doc, anchor.Box(), func(node models.Node) bool {
			return !blocks.HasWorkflowSettings(ctx, l.vault, node)
		})
		if !ok {
			return "", fmt.Errorf("%w: group %s holds no workflow script", ErrWorkflowNotFound, anchor.ID)
		}

		return script.ID, nil
	default:
		return "", fmt.Errorf("%w: node %s is not part of a workflow", ErrWorkflowNotFound, anchor.ID)
	}
}

// FromSettingsNode collects the connection points and enclosing group of the script node
// settingsID.
func (l *Locator) FromSettingsNode(ctx context.Context, doc canvas.Document, settingsID string) (*models.WorkflowNodes, error) {
	settingsNode, ok := doc.Node(settingsID)
	if !ok {
		return nil, fmt.Errorf("%w: script node %s does not exist", ErrWorkflowNotFound, settingsID)
	}

	connections := l.ConnectionPoints(ctx, doc)[settingsID]

	connectionNodes := make([]models.Node, 0, len(connections))
	for _, connection := range connections {
		connectionNodes = append(connectionNodes, connection.Node)
	}

	box := settingsNode.Box()
	for _, node := range connectionNodes {
		box = box.Union(node.Box())
	}

	return &models.WorkflowNodes{
		SettingsNode:    settingsNode,
		ConnectionNodes: connectionNodes,
		GroupNode:       tightestGroup(doc, box),
	}, nil
}

// Connection is a connection-point node together with its decoded block.
type Connection struct {
	Node  models.Node
	Point models.ConnectionPoint
}

// ConnectionPoints indexes every well-formed connection point of the document by the id of
// the script that owns it, in document order.
func (l *Locator) ConnectionPoints(ctx context.Context, doc canvas.Document) map[string][]Connection {
	index := make(map[string][]Connection)

	for _, node := range doc.Nodes() {
		point, err := blocks.NodeConnectionPoint(node)
		if err != nil {
			if !errors.Is(err, blocks.ErrBlockNotFound) {
				l.logger.DebugContext(ctx, "Skipping malformed connection point", "node_id", node.ID, "error", err)
			}

			continue
		}

		index[point.ScriptID] = append(index[point.ScriptID], Connection{Node: node, Point: *point})
	}

	return index
}

func tightestGroup(doc canvas.Document, box models.BoundingBox) *models.Node {
	var (
		closest *models.Node
		best    float64
	)

	for _, node := range doc.Nodes() {
		if !node.IsGroup() || !node.Box().Contains(box) {
			continue
		}

		distance := node.Box().EdgeDistance(box)
		if closest == nil || distance < best {
			group := node
			closest = &group
			best = distance
		}
	}

	return closest
}

var _ Finder = (*Locator)(nil)
