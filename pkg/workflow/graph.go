package workflow

import (
	"slices"

	"github.com/dukex/canvasblocks/pkg/locator"
	"github.com/dukex/canvasblocks/pkg/models"
)

// Graph is the producer/consumer wiring of one run, rebuilt for every run.
type Graph struct {
	// ScriptPorts indexes every connection point by the script that owns it.
	ScriptPorts map[string][]locator.Connection

	// DataFlow maps "<script>_<port>" of an input to the key of the value feeding it:
	// "<script>_<port>" of a producing output or "<node>_NODE" of a plain node.
	DataFlow map[string]string

	// ExecutionData holds resolved values by source key.
	ExecutionData map[string]any

	// ExecuteOrder lists scripts in discovery order.
	ExecuteOrder []models.Node

	// Settings holds the parsed settings of every discovered script that has them.
	Settings map[string]*models.WorkflowSettings

	producers map[string][]string
}

func newGraph(ports map[string][]locator.Connection) *Graph {
	return &Graph{
		ScriptPorts:   ports,
		DataFlow:      make(map[string]string),
		ExecutionData: make(map[string]any),
		Settings:      make(map[string]*models.WorkflowSettings),
		producers:     make(map[string][]string),
	}
}

func (g *Graph) discovered(scriptID string) bool {
	return slices.ContainsFunc(g.ExecuteOrder, func(node models.Node) bool { return node.ID == scriptID })
}

func (g *Graph) addProducer(consumerID, producerID string) {
	if !slices.Contains(g.producers[consumerID], producerID) {
		g.producers[consumerID] = append(g.producers[consumerID], producerID)
	}
}

// Producers returns the ids of the scripts whose outputs feed scriptID.
func (g *Graph) Producers(scriptID string) []string {
	return slices.Clone(g.producers[scriptID])
}

// Inputs builds in_data and out_data for script. Inputs without wiring, or whose producer
// returned nothing, are left out of in_data; every output starts as nil.
func (g *Graph) Inputs(scriptID string) (map[string]any, map[string]any) {
	in := make(map[string]any)
	out := make(map[string]any)

	settings := g.Settings[scriptID]
	if settings == nil {
		return in, out
	}

	for _, name := range settings.Ports() {
		if settings.IOConnections[name].Direction == models.PortDirectionOutput {
			out[name] = nil

			continue
		}

		source, ok := g.DataFlow[models.PortKey(scriptID, name)]
		if !ok {
			continue
		}

		if value, ok := g.ExecutionData[source]; ok {
			in[name] = value
		}
	}

	return in, out
}
