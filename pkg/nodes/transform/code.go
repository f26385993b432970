package transform

import (
	"context"
	"errors"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/sandbox"
	"github.com/nova-hud/nova/pkg/template"
)

// CodeErrorPrefix starts the error message of every failed script.
const CodeErrorPrefix = "Code execution error: "

// CodeExecutor runs a user script as a function body in the sandbox.
type CodeExecutor struct {
	sandbox *sandbox.Sandbox
	metrics *metrics.Metrics
}

func NewCodeExecutor(sb *sandbox.Sandbox, m *metrics.Metrics) *CodeExecutor {
	if sb == nil {
		sb = sandbox.New()
	}

	return &CodeExecutor{sandbox: sb, metrics: m}
}

func (e *CodeExecutor) Type() models.NodeType { return models.NodeTypeCode }

func (e *CodeExecutor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.CodeNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	result, err := e.sandbox.Run(ctx, sandbox.Request{
		Body:    n.Code,
		Scope:   scopeFor(n.ID, ec),
		Timeout: sandbox.CodeTimeout,
	})
	if err != nil {
		code := nodes.CodeExecution
		if errors.Is(err, sandbox.ErrTimeout) {
			code = nodes.CodeTimeout
			e.metrics.SandboxTimeout(string(e.Type()))
		}

		return models.Failed(CodeErrorPrefix+err.Error(), code)
	}

	return valueOutput(result.Value)
}

func scopeFor(nodeID string, ec *execution.Context) sandbox.Scope {
	return sandbox.Scope{
		Input: ec.InputText(nodeID, ""),
		Vars:  ec.Variables(),
		Nodes: ec.NodesSnapshot(),
	}
}

// valueOutput maps a script result onto the output fields: objects become
// data, arrays become items and everything is rendered as text.
func valueOutput(value any) models.NodeOutput {
	out := models.NodeOutput{OK: true, Data: map[string]any{"result": value}}

	switch v := value.(type) {
	case nil:
	case map[string]any:
		out.Data = v
		out.Text = template.Stringify(v)
	case []any:
		out.Items = v
		out.Text = template.Stringify(v)
	default:
		out.Text = template.Stringify(v)
	}

	return out
}
