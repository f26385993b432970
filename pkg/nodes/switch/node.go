// Package switchnode routes a run to the port of the first case matching a value.
package switchnode

import (
	"context"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/nodes/conditional"
)

// Executor compares the resolved expression with each case value, trimmed
// and case-insensitively. Unmatched values go to the default port.
type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Type() models.NodeType { return models.NodeTypeSwitch }

func (e *Executor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.SwitchNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	if strings.TrimSpace(n.Expression) == "" {
		out := models.Failed("switch expression is empty", nodes.CodeInvalidNode)
		out.Port = models.PortError

		return out
	}

	data := ec.Data()
	value := strings.TrimSpace(conditional.FieldValue(n.Expression, data))

	for _, c := range n.Cases {
		if strings.EqualFold(value, strings.TrimSpace(ec.ResolveExpr(c.Value))) {
			port := c.Port
			if port == "" {
				port = c.Value
			}

			return models.NodeOutput{
				OK:   true,
				Text: value,
				Port: port,
				Data: map[string]any{"value": value, "matched": true, "case": c.Value},
			}
		}
	}

	port := n.DefaultPort
	if port == "" {
		port = models.PortDefault
	}

	return models.NodeOutput{
		OK:   true,
		Text: value,
		Port: port,
		Data: map[string]any{"value": value, "matched": false},
	}
}
