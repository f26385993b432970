package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/template"
)

// FormatExecutor renders a template over the run data. Templates using Go
// template syntax get the full run data plus "input"; others resolve path tokens.
type FormatExecutor struct{}

func NewFormatExecutor() *FormatExecutor { return &FormatExecutor{} }

func (e *FormatExecutor) Type() models.NodeType { return models.NodeTypeFormat }

func (e *FormatExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.FormatNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	var text string

	if template.IsGoTemplate(n.Template) {
		data := ec.Data()
		data["input"] = ec.InputText(n.ID, "")

		rendered, err := template.Render(n.Template, data)
		if err != nil {
			return models.Failed(err.Error(), nodes.CodeExecution)
		}

		text = rendered
	} else {
		text = ec.ResolveExpr(n.Template)
	}

	out := models.NodeOutput{OK: true, Text: text, Data: map[string]any{"format": n.OutputFormat}}

	if n.OutputFormat == "json" {
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return models.Failed(fmt.Sprintf("formatted output is not valid JSON: %v", err), nodes.CodeExecution)
		}

		out.Data["value"] = parsed
	}

	return out
}
