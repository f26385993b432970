// Package transform provides the variable, script, format and item-array
// executors.
package transform

import (
	"context"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
)

// SetVariablesExecutor assigns run variables from resolved expressions.
// Reserved and non-identifier names are skipped without failing the node.
type SetVariablesExecutor struct{}

func NewSetVariablesExecutor() *SetVariablesExecutor { return &SetVariablesExecutor{} }

func (e *SetVariablesExecutor) Type() models.NodeType { return models.NodeTypeSetVariables }

func (e *SetVariablesExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.SetVariablesNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	assigned := make(map[string]any, len(n.Assignments))
	rejected := []any{}

	for _, assignment := range n.Assignments {
		name := strings.TrimSpace(assignment.Name)
		value := ec.ResolveExpr(assignment.Value)

		if !ec.SetVariable(name, value) {
			rejected = append(rejected, name)

			continue
		}

		assigned[name] = value
	}

	if len(rejected) > 0 {
		ec.Logger.Debug("Refused variable names", "node_id", n.ID, "names", rejected)
	}

	return models.NodeOutput{
		OK:   true,
		Data: map[string]any{"assigned": assigned, "rejected": rejected},
	}
}
