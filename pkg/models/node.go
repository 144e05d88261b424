// Package models defines the JSON Canvas document model and the workflow metadata carried
// inside canvas nodes.
package models

import (
	"encoding/json"
	"math"
)

// NodeType is the JSON Canvas node kind.
type NodeType string

const (
	NodeTypeText  NodeType = "text"
	NodeTypeFile  NodeType = "file"
	NodeTypeLink  NodeType = "link"
	NodeTypeGroup NodeType = "group"
)

// Node is one positioned canvas node. Fields the model does not know about are kept in
// Extra and written back unchanged.
type Node struct {
	ID     string   `json:"id"              validate:"required"`
	Type   NodeType `json:"type"            validate:"required,oneof=text file link group"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"           validate:"gte=0"`
	Height float64  `json:"height"          validate:"gte=0"`
	Text   string   `json:"text,omitempty"`
	File   string   `json:"file,omitempty"`
	URL    string   `json:"url,omitempty"`
	Label  string   `json:"label,omitempty"`
	Color  string   `json:"color,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var nodeFields = []string{"id", "type", "x", "y", "width", "height", "text", "file", "url", "label", "color"}

type nodeAlias Node

func (n Node) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(nodeAlias(n), n.Extra)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var alias nodeAlias

	extra, err := unmarshalWithExtra(data, &alias, nodeFields)
	if err != nil {
		return err
	}

	alias.Extra = extra
	*n = Node(alias)

	return nil
}

// Box returns the node's axis-aligned bounding box.
func (n Node) Box() BoundingBox {
	return BoundingBox{MinX: n.X, MinY: n.Y, MaxX: n.X + n.Width, MaxY: n.Y + n.Height}
}

// IsGroup reports whether the node is a group node.
func (n Node) IsGroup() bool {
	return n.Type == NodeTypeGroup
}

// Edge is a directed canvas edge. Direction is always from an output to an input.
type Edge struct {
	ID       string `json:"id"                 validate:"required"`
	FromNode string `json:"fromNode"           validate:"required"`
	ToNode   string `json:"toNode"             validate:"required"`
	FromSide string `json:"fromSide,omitempty"`
	ToSide   string `json:"toSide,omitempty"`
	Label    string `json:"label,omitempty"`
	Color    string `json:"color,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var edgeFields = []string{"id", "fromNode", "toNode", "fromSide", "toSide", "label", "color"}

type edgeAlias Edge

func (e Edge) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(edgeAlias(e), e.Extra)
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	var alias edgeAlias

	extra, err := unmarshalWithExtra(data, &alias, edgeFields)
	if err != nil {
		return err
	}

	alias.Extra = extra
	*e = Edge(alias)

	return nil
}

// Canvas is a whole JSON Canvas document.
type Canvas struct {
	Nodes []Node `json:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// BoundingBox is an axis-aligned rectangle in canvas coordinates.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Overlaps reports whether the two boxes intersect; touching edges count.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	return b.MinX <= other.MaxX && b.MaxX >= other.MinX &&
		b.MinY <= other.MaxY && b.MaxY >= other.MinY
}

// Contains reports whether other lies fully inside b.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return b.MinX <= other.MinX && b.MaxX >= other.MaxX &&
		b.MinY <= other.MinY && b.MaxY >= other.MaxY
}

func (b BoundingBox) Center() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// CenterDistance is the Euclidean distance between the two box centres.
func (b BoundingBox) CenterDistance(other BoundingBox) float64 {
	x1, y1 := b.Center()
	x2, y2 := other.Center()

	return math.Hypot(x1-x2, y1-y2)
}

// Union returns the smallest box enclosing both boxes.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// EdgeDistance sums the absolute distances between the four corresponding edges.
func (b BoundingBox) EdgeDistance(other BoundingBox) float64 {
	return math.Abs(b.MinX-other.MinX) + math.Abs(b.MinY-other.MinY) +
		math.Abs(b.MaxX-other.MaxX) + math.Abs(b.MaxY-other.MaxY)
}

func marshalWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	encoded, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return encoded, err
	}

	merged := make(map[string]json.RawMessage, len(extra)+8)
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}

	for key, value := range extra {
		if _, exists := merged[key]; !exists {
			merged[key] = value
		}
	}

	return json.Marshal(merged)
}

func unmarshalWithExtra(data []byte, target any, known []string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	for _, key := range known {
		delete(raw, key)
	}

	if len(raw) == 0 {
		return nil, nil
	}

	return raw, nil
}
