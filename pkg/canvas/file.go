package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var canvasSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": []any{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "type", "x", "y", "width", "height"},
				"properties": map[string]any{
					"id":     map[string]any{"type": "string"},
					"type":   map[string]any{"type": "string"},
					"x":      map[string]any{"type": "number"},
					"y":      map[string]any{"type": "number"},
					"width":  map[string]any{"type": "number"},
					"height": map[string]any{"type": "number"},
				},
			},
		},
		"edges": map[string]any{
			"type": []any{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "fromNode", "toNode"},
			},
		},
	},
}

// File is a Document held in memory and bound to a .canvas file on disk.
type File struct {
	mu    sync.RWMutex
	path  string
	data  models.Canvas
	dirty bool
}

// New returns an in-memory document that is not bound to any file.
func New(data models.Canvas) *File {
	return &File{data: data}
}

// Open loads and validates the canvas file at path.
func Open(ctx context.Context, path string) (*File, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas %s: %w", path, err)
	}

	data, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &File{path: path, data: data}, nil
}

// Parse validates raw against the JSON Canvas shape and decodes it.
func Parse(raw []byte) (models.Canvas, error) {
	var data models.Canvas

	if len(strings.TrimSpace(string(raw))) == 0 {
		return data, nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(canvasSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return data, fmt.Errorf("%w: %w", ErrInvalidCanvas, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return data, fmt.Errorf("%w: %s", ErrInvalidCanvas, strings.Join(messages, "; "))
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("%w: %w", ErrInvalidCanvas, err)
	}

	return data, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Nodes() []models.Node {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return slices.Clone(f.data.Nodes)
}

func (f *File) Edges() []models.Edge {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return slices.Clone(f.data.Edges)
}

func (f *File) Node(id string) (models.Node, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, node := range f.data.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return models.Node{}, false
}

func (f *File) CreateTextNode(text string, at Placement) string {
	return f.addNode(models.Node{Type: models.NodeTypeText, Text: text}, at)
}

func (f *File) CreateFileNode(file string, at Placement) string {
	return f.addNode(models.Node{Type: models.NodeTypeFile, File: filepath.ToSlash(file)}, at)
}

func (f *File) CreateGroupNode(label string, at Placement) string {
	return f.addNode(models.Node{Type: models.NodeTypeGroup, Label: label}, at)
}

func (f *File) addNode(node models.Node, at Placement) string {
	node.ID = NewNodeID()
	node.X = at.X
	node.Y = at.Y
	node.Width = at.Width
	node.Height = at.Height

	f.mu.Lock()
	defer f.mu.Unlock()

	f.data.Nodes = append(f.data.Nodes, node)
	f.dirty = true

	return node.ID
}

func (f *File) SetText(id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.data.Nodes {
		if f.data.Nodes[i].ID == id {
			f.data.Nodes[i].Text = text
			f.dirty = true

			return nil
		}
	}

	return fmt.Errorf("%s: %w", id, ErrNodeNotFound)
}

// RemoveNode deletes a node and every edge attached to it.
func (f *File) RemoveNode(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	before := len(f.data.Nodes)
	f.data.Nodes = slices.DeleteFunc(f.data.Nodes, func(node models.Node) bool { return node.ID == id })

	if len(f.data.Nodes) == before {
		return false
	}

	f.data.Edges = slices.DeleteFunc(f.data.Edges, func(edge models.Edge) bool {
		return edge.FromNode == id || edge.ToNode == id
	})
	f.dirty = true

	return true
}

func (f *File) RequestSave() {
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
}

func (f *File) Dirty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.dirty
}

// Save writes the document back to its file through a temporary file and rename.
func (f *File) Save(ctx context.Context) error {
	if f.path == "" {
		return ErrNoPath
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data.Nodes == nil {
		f.data.Nodes = []models.Node{}
	}

	if f.data.Edges == nil {
		f.data.Edges = []models.Edge{}
	}

	encoded, err := json.MarshalIndent(f.data, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode canvas: %w", err)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", f.path, err)
	}

	// CreateTemp opens 0600; the replaced canvas keeps its own permissions.
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to set permissions on %s: %w", f.path, err)
	}

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write canvas %s: %w", f.path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write canvas %s: %w", f.path, err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace canvas %s: %w", f.path, err)
	}

	f.dirty = false

	return nil
}

// Create writes an empty canvas to path unless a file already exists there.
func Create(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(`{"nodes":[],"edges":[]}`), 0o644)
}

var _ Document = (*File)(nil)
