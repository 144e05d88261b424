package models

// PortDirection is the direction of data flow through a script port.
type PortDirection string

const (
	PortDirectionInput  PortDirection = "input"
	PortDirectionOutput PortDirection = "output"
)

// PortType declares how a port value is marshalled for the script.
type PortType string

const (
	PortTypeText    PortType = "text"
	PortTypeInteger PortType = "integer"
	PortTypeFloat   PortType = "float"
	PortTypeImage   PortType = "image"
	PortTypeFile    PortType = "file"
	PortTypeAny     PortType = "any"
)

// IOConnection is one named port declared in a script's settings block.
type IOConnection struct {
	Direction PortDirection `json:"direction" validate:"required,oneof=input output"`
	Type      PortType      `json:"type"`
}

// ConnectionPoint is the payload of a connection-point block: one wire endpoint of a
// script port, carried by a small dedicated text node.
type ConnectionPoint struct {
	Name     string `json:"name"     validate:"required"`
	ScriptID string `json:"scriptID" validate:"required"`
}

// PortKey addresses a value produced on (or consumed by) a script port.
func PortKey(scriptID, portName string) string {
	return scriptID + "_" + portName
}

// LeafKey addresses a value supplied by a plain (non-script) node.
func LeafKey(nodeID string) string {
	return nodeID + "_NODE"
}
