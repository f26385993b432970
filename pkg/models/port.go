package models

// Ports emitted by control-flow nodes and consumed by the runner.
const (
	PortTrue    = "true"
	PortFalse   = "false"
	PortDefault = "default"
	PortError   = "error"
	PortLoop    = "loop"
	PortDone    = "done"
)

// Connection links a source node (optionally a named port of it) to a target node.
type Connection struct {
	ID         string `json:"id"`
	Source     string `json:"source"               validate:"required"`
	SourcePort string `json:"sourcePort,omitempty"`
	Target     string `json:"target"               validate:"required"`
}

// Normalize splits a "{node_id}:{port}" source into Source and SourcePort.
func (c *Connection) Normalize() {
	if c.SourcePort != "" {
		return
	}

	if nodeID, port, ok := ParsePortID(c.Source); ok {
		c.Source = nodeID
		c.SourcePort = port
	}
}

// ParsePortID parses a port ID in format "{node_id}:{port_name}" into components.
func ParsePortID(portID string) (string, string, bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}
