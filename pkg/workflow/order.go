package workflow

import (
	"fmt"
	"slices"

	"github.com/dukex/canvasblocks/pkg/models"
)

// Ordering selects how discovered scripts are sequenced.
type Ordering string

const (
	// OrderReverseDiscovery runs the last discovered script first. Producers are found after
	// their consumers, so this runs producers first on chains and on diamonds whose branches
	// have equal length.
	OrderReverseDiscovery Ordering = "reverse-discovery"

	// OrderTopological sorts scripts so every producer runs before its consumers and fails
	// on cycles.
	OrderTopological Ordering = "topological"
)

// ParseOrdering accepts the configuration names of the orderings; empty selects the default.
func ParseOrdering(name string) (Ordering, error) {
	switch Ordering(name) {
	case "", OrderReverseDiscovery:
		return OrderReverseDiscovery, nil
	case OrderTopological:
		return OrderTopological, nil
	default:
		return "", fmt.Errorf("unknown ordering %q", name)
	}
}

// Order returns the scripts of g in the sequence they should run.
func (o Ordering) Order(g *Graph) ([]models.Node, error) {
	if o == OrderTopological {
		return topological(g)
	}

	order := slices.Clone(g.ExecuteOrder)
	slices.Reverse(order)

	return order, nil
}

// topological is Kahn's algorithm over producer edges. Among scripts that are ready at the
// same time the one discovered last goes first, so acyclic chains keep the default order.
func topological(g *Graph) ([]models.Node, error) {
	pending := make(map[string]int, len(g.ExecuteOrder))
	consumers := make(map[string][]string)

	for _, node := range g.ExecuteOrder {
		pending[node.ID] = 0
	}

	for _, node := range g.ExecuteOrder {
		for _, producer := range g.producers[node.ID] {
			if producer == node.ID {
				return nil, fmt.Errorf("%w: %s feeds itself", ErrDependencyCycle, node.ID)
			}

			if _, ok := pending[producer]; !ok {
				continue
			}

			pending[node.ID]++
			consumers[producer] = append(consumers[producer], node.ID)
		}
	}

	order := make([]models.Node, 0, len(g.ExecuteOrder))
	done := make(map[string]bool, len(g.ExecuteOrder))

	for len(order) < len(g.ExecuteOrder) {
		next := -1

		for i := len(g.ExecuteOrder) - 1; i >= 0; i-- {
			id := g.ExecuteOrder[i].ID
			if !done[id] && pending[id] == 0 {
				next = i

				break
			}
		}

		if next < 0 {
			return nil, fmt.Errorf("%w among %d scripts", ErrDependencyCycle, len(g.ExecuteOrder)-len(order))
		}

		node := g.ExecuteOrder[next]
		done[node.ID] = true
		order = append(order, node)

		for _, consumer := range consumers[node.ID] {
			pending[consumer]--
		}
	}

	return order, nil
}
