package locator

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/canvasblocks/pkg/cache"
	"github.com/dukex/canvasblocks/pkg/canvas"
	"github.com/dukex/canvasblocks/pkg/models"
)

type memberKey struct {
	Canvas string
	NodeID string
}

// Cache memoizes a Finder for a bounded time. Every member of a resolved workflow maps to
// the same cached result, and failed lookups are remembered as well.
type Cache struct {
	finder  Finder
	members *cache.TimedCache[memberKey, string]
	nodes   *cache.TimedCache[memberKey, models.WorkflowNodes]
}

// NewCache wraps finder; a zero ttl uses cache.DefaultTTL.
func NewCache(finder Finder, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	return &Cache{
		finder:  finder,
		members: cache.New[memberKey, string](ttl),
		nodes:   cache.New[memberKey, models.WorkflowNodes](ttl),
	}
}

func (c *Cache) Locate(ctx context.Context, doc canvas.Document, anchorID string) (*models.WorkflowNodes, error) {
	key := memberKey{Canvas: doc.Path(), NodeID: anchorID}

	if settingsID, ok := c.members.Get(key); ok {
		if settingsID == "" {
			return nil, ErrWorkflowNotFound
		}

		settingsKey := memberKey{Canvas: doc.Path(), NodeID: settingsID}

		if cached, ok := c.nodes.Get(settingsKey); ok {
			if nodes, ok := current(doc, cached); ok {
				return nodes, nil
			}

			c.forget(doc.Path(), cached)
		}
	}

	nodes, err := c.finder.Locate(ctx, doc, anchorID)
	if err != nil {
		if errors.Is(err, ErrWorkflowNotFound) {
			c.members.Set(key, "")
		}

		return nil, err
	}

	// A workflow without its group may have been located before the group was drawn.
	if nodes.GroupNode == nil {
		return nodes, nil
	}

	settingsKey := memberKey{Canvas: doc.Path(), NodeID: nodes.SettingsNode.ID}
	c.nodes.Set(settingsKey, *nodes)

	for _, id := range nodes.MemberIDs() {
		c.members.Set(memberKey{Canvas: doc.Path(), NodeID: id}, nodes.SettingsNode.ID)
	}

	return nodes, nil
}

// current rebuilds cached from the node records of doc, so callers always see the text the
// document holds now. It fails when a member has been removed since the lookup was cached.
func current(doc canvas.Document, cached models.WorkflowNodes) (*models.WorkflowNodes, bool) {
	settings, ok := doc.Node(cached.SettingsNode.ID)
	if !ok {
		return nil, false
	}

	nodes := &models.WorkflowNodes{
		SettingsNode:    settings,
		ConnectionNodes: make([]models.Node, 0, len(cached.ConnectionNodes)),
	}

	for _, connection := range cached.ConnectionNodes {
		node, ok := doc.Node(connection.ID)
		if !ok {
			return nil, false
		}

		nodes.ConnectionNodes = append(nodes.ConnectionNodes, node)
	}

	if cached.GroupNode != nil {
		group, ok := doc.Node(cached.GroupNode.ID)
		if !ok {
			return nil, false
		}

		nodes.GroupNode = &group
	}

	return nodes, true
}

func (c *Cache) forget(canvasPath string, nodes models.WorkflowNodes) {
	c.nodes.Delete(memberKey{Canvas: canvasPath, NodeID: nodes.SettingsNode.ID})

	for _, id := range nodes.MemberIDs() {
		c.members.Delete(memberKey{Canvas: canvasPath, NodeID: id})
	}
}

// Invalidate forgets every cached lookup.
func (c *Cache) Invalidate() {
	c.members.Clear()
	c.nodes.Clear()
}

var _ Finder = (*Cache)(nil)
