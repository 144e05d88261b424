package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/canvasblocks/pkg/blocks"
	"github.com/dukex/canvasblocks/pkg/models"
)

// Finding is one problem found on a canvas.
type Finding struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

// Check opens the canvas and reports malformed settings and connection-point blocks, and
// connection points whose script is missing or declares no such port. The canvas itself
// failing to load is returned as an error.
func (s *Service) Check(ctx context.Context, canvasPath string) ([]Finding, error) {
	doc, err := s.open(ctx, canvasPath)
	if err != nil {
		return nil, err
	}

	var findings []Finding

	for _, node := range doc.Nodes() {
		if _, err := blocks.NodeSettings(ctx, s.vault, node); err != nil && !errors.Is(err, blocks.ErrBlockNotFound) {
			findings = append(findings, Finding{NodeID: node.ID, Message: "settings: " + err.Error()})
		}

		point, err := blocks.NodeConnectionPoint(node)
		if errors.Is(err, blocks.ErrBlockNotFound) {
			continue
		}

		if err != nil {
			findings = append(findings, Finding{NodeID: node.ID, Message: "connection point: " + err.Error()})

			continue
		}

		if message := s.checkPort(ctx, doc.Node, *point); message != "" {
			findings = append(findings, Finding{NodeID: node.ID, Message: message})
		}
	}

	return findings, nil
}

func (s *Service) checkPort(ctx context.Context, lookup func(string) (models.Node, bool),
	point models.ConnectionPoint,
) string {
	script, ok := lookup(point.ScriptID)
	if !ok {
		return fmt.Sprintf("connection point %s refers to missing script %s", point.Name, point.ScriptID)
	}

	settings, err := blocks.NodeSettings(ctx, s.vault, script)
	if err != nil {
		return fmt.Sprintf("connection point %s refers to script %s without settings", point.Name, point.ScriptID)
	}

	if _, ok := settings.IOConnections[point.Name]; !ok {
		return fmt.Sprintf("script %s declares no port %s", point.ScriptID, point.Name)
	}

	return ""
}
