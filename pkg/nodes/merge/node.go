// Package merge joins the branches that reach a merge node. The runner decides
// when a merge may run; the executor only combines what arrived.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
)

const (
	MergeModeAll = "all"
	MergeModeAny = "any"
)

// Mode returns the effective mode of a merge node.
func Mode(n *models.MergeNode) string {
	if n.Mode == MergeModeAny {
		return MergeModeAny
	}

	return MergeModeAll
}

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType { return models.NodeTypeMerge }

func (e *Executor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.MergeNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	var (
		sources  []any
		sections []string
		items    []any
	)

	merged := map[string]any{}
	seen := map[string]struct{}{}

	for _, conn := range ec.Mission.Incoming(n.ID) {
		if _, dup := seen[conn.Source]; dup {
			continue
		}

		seen[conn.Source] = struct{}{}

		out, executed := ec.NodeOutput(conn.Source)
		if !executed || !out.OK {
			continue
		}

		sources = append(sources, conn.Source)
		merged[conn.Source] = out.Data
		items = append(items, out.Items...)

		if text := execution.OutputText(out); text != "" {
			sections = append(sections, section(ec.Mission, conn.Source, text))
		}
	}

	text := ""
	if len(sections) == 1 {
		_, text, _ = strings.Cut(sections[0], "\n")
	} else {
		text = strings.Join(sections, "\n\n")
	}

	return models.NodeOutput{
		OK:    true,
		Text:  text,
		Items: items,
		Data: map[string]any{
			"mode":    Mode(n),
			"sources": sources,
			"merged":  merged,
		},
	}
}

func section(mission *models.Mission, nodeID, text string) string {
	label := nodeID
	if node, ok := mission.NodeByID(nodeID); ok && node.Base().Label != "" {
		label = node.Base().Label
	}

	return fmt.Sprintf("[%s]\n%s", label, text)
}
