package models

// SettingsType selects how a script is executed.
type SettingsType string

const (
	SettingsTypeSimple   SettingsType = "simple"
	SettingsTypeWorkflow SettingsType = "workflow"
)

// WorkflowSettings is the payload of a settings block.
type WorkflowSettings struct {
	Type             SettingsType            `json:"type,omitempty"`
	IOConnections    map[string]IOConnection `json:"ioConnections" validate:"dive"`
	AllowedVariables []string                `json:"allowedVariables,omitempty"`

	// PortOrder lists IOConnections keys in the order they appear in the block.
	PortOrder []string `json:"-"`
}

// IsWorkflow reports whether the settings describe a workflow script. An unset type counts
// as workflow; only an explicit "simple" opts out.
func (s WorkflowSettings) IsWorkflow() bool {
	return s.Type != SettingsTypeSimple
}

// Ports returns port names in declaration order, falling back to map order for names
// missing from PortOrder.
func (s WorkflowSettings) Ports() []string {
	names := make([]string, 0, len(s.IOConnections))
	seen := make(map[string]bool, len(s.IOConnections))

	for _, name := range s.PortOrder {
		if _, ok := s.IOConnections[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	for name := range s.IOConnections {
		if !seen[name] {
			names = append(names, name)
		}
	}

	return names
}
