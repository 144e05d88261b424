package blocks

import (
	"context"
	"strings"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/vault"
)

// NodeText returns the text a node contributes: a text node's text, a link's url, the
// content of a markdown file node, or the path of any other file node. ok is false when a
// markdown file cannot be read or the node carries no text at all.
func NodeText(ctx context.Context, v vault.Vault, node models.Node) (string, bool) {
	switch node.Type {
	case models.NodeTypeText:
		return node.Text, true
	case models.NodeTypeLink:
		return node.URL, true
	case models.NodeTypeFile:
		if !strings.HasSuffix(node.File, "md") {
			return node.File, true
		}

		if v == nil {
			return "", false
		}

		text, err := v.Read(ctx, node.File)
		if err != nil {
			return "", false
		}

		return text, true
	default:
		return "", false
	}
}

// NodeSettings parses the settings block carried by node.
func NodeSettings(ctx context.Context, v vault.Vault, node models.Node) (*models.WorkflowSettings, error) {
	text, ok := NodeText(ctx, v, node)
	if !ok {
		return nil, ErrBlockNotFound
	}

	return ParseSettings(text)
}

// NodeConnectionPoint parses the connection-point block carried by node. Connection points
// only ever live in text nodes.
func NodeConnectionPoint(node models.Node) (*models.ConnectionPoint, error) {
	if node.Type != models.NodeTypeText {
		return nil, ErrBlockNotFound
	}

	return ParseConnectionPoint(node.Text)
}

// NodeContains reports whether node's text holds a block tagged tag.
func NodeContains(ctx context.Context, v vault.Vault, node models.Node, tag string) bool {
	text, ok := NodeText(ctx, v, node)

	return ok && Contains(text, tag)
}

// NodeContainsScript reports whether node's text holds a script block.
func NodeContainsScript(ctx context.Context, v vault.Vault, node models.Node) bool {
	text, ok := NodeText(ctx, v, node)

	return ok && ContainsScript(text)
}

// HasWorkflowSettings reports whether node carries a well-formed settings block that is not
// of type "simple".
func HasWorkflowSettings(ctx context.Context, v vault.Vault, node models.Node) bool {
	settings, err := NodeSettings(ctx, v, node)

	return err == nil && settings.IsWorkflow()
}
