package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidMission is returned when a mission fails structural checks.
	ErrInvalidMission = errors.New("invalid mission")
	// ErrCyclicGraph is returned when the mission graph contains a cycle.
	ErrCyclicGraph = errors.New("mission graph contains a cycle")
)

// MissionSettings carries mission-wide defaults.
type MissionSettings struct {
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Mission is a user-authored automation graph. It is immutable for the
// duration of a run.
type Mission struct {
	ID          string          `json:"id"                    validate:"required"`
	Label       string          `json:"label"`
	Enabled     bool            `json:"enabled"`
	Nodes       []Node          `json:"nodes"                 validate:"required,min=1"`
	Connections []*Connection   `json:"connections,omitempty" validate:"dive"`
	ChatIDs     []string        `json:"chatIds,omitempty"`
	Settings    MissionSettings `json:"settings"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}

type missionJSON struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Nodes       []json.RawMessage `json:"nodes"`
	Connections []*Connection     `json:"connections,omitempty"`
	ChatIDs     []string          `json:"chatIds,omitempty"`
	Settings    MissionSettings   `json:"settings"`
	UpdatedAt   time.Time         `json:"updatedAt,omitempty"`
}

// UnmarshalJSON decodes the node list through DecodeNode. Missions without an
// explicit enabled flag are enabled.
func (m *Mission) UnmarshalJSON(data []byte) error {
	var raw missionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	nodes := make([]Node, 0, len(raw.Nodes))

	for i, rawNode := range raw.Nodes {
		node, err := DecodeNode(rawNode)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}

		nodes = append(nodes, node)
	}

	for _, conn := range raw.Connections {
		conn.Normalize()
	}

	*m = Mission{
		ID:          raw.ID,
		Label:       raw.Label,
		Enabled:     raw.Enabled == nil || *raw.Enabled,
		Nodes:       nodes,
		Connections: raw.Connections,
		ChatIDs:     raw.ChatIDs,
		Settings:    raw.Settings,
		UpdatedAt:   raw.UpdatedAt,
	}

	return nil
}

// NodeByID returns the node with the given id.
func (m *Mission) NodeByID(id string) (Node, bool) {
	for _, node := range m.Nodes {
		if node.Base().ID == id {
			return node, true
		}
	}

	return nil, false
}

// Incoming returns the connections that target nodeID, in declaration order.
func (m *Mission) Incoming(nodeID string) []*Connection {
	var conns []*Connection

	for _, conn := range m.Connections {
		if conn.Target == nodeID {
			conns = append(conns, conn)
		}
	}

	return conns
}

// Validate checks node id uniqueness, known node types and connection endpoints.
func (m *Mission) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMission)
	}

	seen := make(map[string]struct{}, len(m.Nodes))

	for _, node := range m.Nodes {
		base := node.Base()
		if base.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidMission)
		}

		if _, dup := seen[base.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidMission, base.ID)
		}

		if !base.Type.Valid() {
			return fmt.Errorf("%w: node %q: %w", ErrInvalidMission, base.ID, ErrUnknownNodeType)
		}

		seen[base.ID] = struct{}{}
	}

	for _, conn := range m.Connections {
		if _, ok := seen[conn.Source]; !ok {
			return fmt.Errorf("%w: connection %q has unknown source %q", ErrInvalidMission, conn.ID, conn.Source)
		}

		if _, ok := seen[conn.Target]; !ok {
			return fmt.Errorf("%w: connection %q has unknown target %q", ErrInvalidMission, conn.ID, conn.Target)
		}
	}

	return nil
}
