package workflow

import (
	"fmt"
	"slices"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes/merge"
)

// Plan is the execution order of a mission graph. Sticky notes and the
// connections touching them are left out.
type Plan struct {
	order    []models.Node
	incoming map[string][]*models.Connection
	triggers []string
}

// NewPlan orders the mission topologically. Among ready nodes, triggers go
// first, then declaration order decides. A cycle yields models.ErrCyclicGraph.
func NewPlan(mission *models.Mission) (*Plan, error) {
	index := make(map[string]int, len(mission.Nodes))
	active := make([]models.Node, 0, len(mission.Nodes))

	for _, node := range mission.Nodes {
		if node.Base().Type == models.NodeTypeStickyNote {
			continue
		}

		index[node.Base().ID] = len(active)
		active = append(active, node)
	}

	plan := &Plan{
		order:    make([]models.Node, 0, len(active)),
		incoming: make(map[string][]*models.Connection, len(active)),
	}

	inDegree := make([]int, len(active))
	outgoing := make(map[string][]string, len(active))

	for _, conn := range mission.Connections {
		_, okSource := index[conn.Source]
		target, okTarget := index[conn.Target]

		if !okSource || !okTarget {
			continue
		}

		plan.incoming[conn.Target] = append(plan.incoming[conn.Target], conn)
		outgoing[conn.Source] = append(outgoing[conn.Source], conn.Target)
		inDegree[target]++
	}

	var ready []int

	for i := range active {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		slices.SortFunc(ready, func(a, b int) int {
			return priority(active, a) - priority(active, b)
		})

		current := ready[0]
		ready = ready[1:]

		node := active[current]
		plan.order = append(plan.order, node)

		if node.Base().Type.Kind() == models.KindTrigger && len(plan.incoming[node.Base().ID]) == 0 {
			plan.triggers = append(plan.triggers, node.Base().ID)
		}

		for _, targetID := range outgoing[node.Base().ID] {
			target := index[targetID]

			inDegree[target]--
			if inDegree[target] == 0 {
				ready = append(ready, target)
			}
		}
	}

	if len(plan.order) != len(active) {
		var stuck []string

		for i, node := range active {
			if inDegree[i] > 0 {
				stuck = append(stuck, node.Base().ID)
			}
		}

		return nil, fmt.Errorf("%w: nodes %v", models.ErrCyclicGraph, stuck)
	}

	return plan, nil
}

// priority sorts triggers ahead of other nodes, each group by declaration.
func priority(active []models.Node, i int) int {
	if active[i].Base().Type.Kind() == models.KindTrigger {
		return i
	}

	return len(active) + i
}

// Order returns the nodes in execution order.
func (p *Plan) Order() []models.Node {
	return p.order
}

// Incoming returns the connections into nodeID, in declaration order.
func (p *Plan) Incoming(nodeID string) []*models.Connection {
	return p.incoming[nodeID]
}

// RootTriggers returns the ids of trigger nodes without incoming connections.
func (p *Plan) RootTriggers() []string {
	return p.triggers
}

// Reachable reports whether node should run given the outputs recorded so far.
// Roots always run. A merge in "all" mode needs every incoming edge live;
// any other node needs at least one.
func (p *Plan) Reachable(node models.Node, ec *execution.Context) bool {
	incoming := p.incoming[node.Base().ID]
	if len(incoming) == 0 {
		return true
	}

	live := 0

	for _, conn := range incoming {
		if EdgeLive(ec, conn) {
			live++
		}
	}

	if m, ok := node.(*models.MergeNode); ok && merge.Mode(m) == merge.MergeModeAll {
		return live == len(incoming)
	}

	return live > 0
}

// EdgeLive reports whether a connection carries its source's result forward.
// The source must have executed and, for triggers, fired. An unlabeled edge
// is always live; a labeled one must match the emitted port, "error" matches
// a failed source and "default" matches a source that emitted no port.
func EdgeLive(ec *execution.Context, conn *models.Connection) bool {
	out, executed := ec.NodeOutput(conn.Source)
	if !executed {
		return false
	}

	if source, ok := ec.Mission.NodeByID(conn.Source); ok && source.Base().Type.Kind() == models.KindTrigger && !out.Triggered() {
		return false
	}

	switch {
	case conn.SourcePort == "":
		return true
	case conn.SourcePort == out.Port:
		return true
	case conn.SourcePort == models.PortError:
		return !out.OK
	case conn.SourcePort == models.PortDefault:
		return out.OK && out.Port == ""
	default:
		return false
	}
}
