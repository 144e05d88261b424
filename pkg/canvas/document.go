// Package canvas loads, edits and saves JSON Canvas documents.
package canvas

import (
	"context"
	"errors"
	"strings"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrNodeNotFound indicates the document has no node with the given id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidCanvas indicates the canvas file is not a valid JSON Canvas document.
	ErrInvalidCanvas = errors.New("invalid canvas document")

	// ErrNoPath indicates a document that was never bound to a file is being saved.
	ErrNoPath = errors.New("document has no file path")
)

// Placement positions a new node on the canvas.
type Placement struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Document is the mutable canvas a run reads from and reconciles script side effects into.
type Document interface {
	Path() string
	Nodes() []models.Node
	Edges() []models.Edge
	Node(id string) (models.Node, bool)

	CreateTextNode(text string, at Placement) string
	CreateFileNode(file string, at Placement) string
	CreateGroupNode(label string, at Placement) string
	SetText(id, text string) error
	RemoveNode(id string) bool

	RequestSave()
	Dirty() bool
	Save(ctx context.Context) error
}

// NewNodeID returns a fresh node id in the 16 hex digit form canvas editors use.
func NewNodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// IncomingEdges returns every edge pointing at nodeID, in document order.
func IncomingEdges(doc Document, nodeID string) []models.Edge {
	var incoming []models.Edge

	for _, edge := range doc.Edges() {
		if edge.ToNode == nodeID {
			incoming = append(incoming, edge)
		}
	}

	return incoming
}

// FirstIncomingEdge returns the first edge in document order pointing at nodeID.
func FirstIncomingEdge(doc Document, nodeID string) (models.Edge, bool) {
	for _, edge := range doc.Edges() {
		if edge.ToNode == nodeID {
			return edge, true
		}
	}

	return models.Edge{}, false
}

// ClosestInBounds returns the node overlapping box whose centre is nearest to the centre of
// box, skipping nodes for which skip returns true.
func ClosestInBounds(doc Document, box models.BoundingBox, skip func(models.Node) bool) (models.Node, bool) {
	var (
		closest models.Node
		found   bool
		best    float64
	)

	for _, node := range doc.Nodes() {
		nodeBox := node.Box()
		if !box.Overlaps(nodeBox) {
			continue
		}

		if skip != nil && skip(node) {
			continue
		}

		distance := box.CenterDistance(nodeBox)
		if !found || distance < best {
			closest = node
			best = distance
			found = true
		}
	}

	return closest, found
}
