package models

// WorkflowGroupLabel is the label of the group node drawn around a workflow script.
const WorkflowGroupLabel = "Workflow Script"

// WorkflowNodes is the resolved identity of one workflow: its script node, the
// connection-point nodes owned by it and the tightest enclosing group, if any.
type WorkflowNodes struct {
	SettingsNode    Node   `json:"settings_node"`
	ConnectionNodes []Node `json:"connection_nodes"`
	GroupNode       *Node  `json:"group_node,omitempty"`
}

// MemberIDs returns the ids of every node belonging to the workflow.
func (w WorkflowNodes) MemberIDs() []string {
	ids := make([]string, 0, len(w.ConnectionNodes)+2)
	ids = append(ids, w.SettingsNode.ID)

	for _, node := range w.ConnectionNodes {
		ids = append(ids, node.ID)
	}

	if w.GroupNode != nil {
		ids = append(ids, w.GroupNode.ID)
	}

	return ids
}
