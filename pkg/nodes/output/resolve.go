package output

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/nova-hud/nova/pkg/briefing"
	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/template"
)

// Output text budgets for the upstream aggregate.
const (
	AggregateChars = execution.OutputAggregateChars
	PerNodeChars   = execution.OutputPerNodeChars
)

var unresolvedToken = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// TextSource names the step of the resolution chain that produced the text.
type TextSource string

const (
	SourceInputExpression TextSource = "inputExpression"
	SourceMessageTemplate TextSource = "messageTemplate"
	SourceBriefing        TextSource = "briefing"
	SourceAI              TextSource = "ai"
	SourceUpstream        TextSource = "upstream"
	SourceLastOutput      TextSource = "lastOutput"
	SourceNone            TextSource = ""
)

// ResolveText picks the text an output node delivers. The first non-empty
// candidate wins:
//  1. the resolved inputExpression
//  2. the resolved messageTemplate
//  3. the deterministic briefing, when the mission has that shape
//  4. the most recent successful AI node, scanning the mission backwards
//  5. the upstream aggregate
//  6. the last output of the run, successful or not
//
// An expression that resolves to nothing but unresolved tokens counts as
// empty, and so does a Go template that references missing data.
func ResolveText(node models.OutputNode, ec *execution.Context) (string, TextSource) {
	cfg := node.Output()
	nodeID := node.Base().ID

	if text := resolved(cfg.InputExpression, nodeID, ec); text != "" {
		return text, SourceInputExpression
	}

	if text := resolved(cfg.MessageTemplate, nodeID, ec); text != "" {
		return text, SourceMessageTemplate
	}

	if text, ok := briefing.Build(ec); ok && strings.TrimSpace(text) != "" {
		return text, SourceBriefing
	}

	if text := latestAIText(ec); text != "" {
		return text, SourceAI
	}

	if text := strings.TrimSpace(ec.AggregateUpstream(nodeID, AggregateChars, PerNodeChars)); text != "" {
		return text, SourceUpstream
	}

	if outputs := ec.Outputs(); len(outputs) > 0 {
		if text := strings.TrimSpace(execution.OutputText(outputs[len(outputs)-1].Output)); text != "" {
			return text, SourceLastOutput
		}
	}

	return "", SourceNone
}

func resolved(expr, nodeID string, ec *execution.Context) string {
	if strings.TrimSpace(expr) == "" {
		return ""
	}

	if template.IsGoTemplate(expr) {
		data := ec.Data()
		data["input"] = ec.LastUpstreamText(nodeID)

		rendered, err := template.Render(expr, data)

		switch {
		case err == nil:
			return strings.TrimSpace(rendered)
		case errors.Is(err, template.ErrUnresolved):
			return ""
		}
	}

	text := strings.TrimSpace(ec.ResolveExpr(expr))
	if strings.TrimSpace(unresolvedToken.ReplaceAllString(text, "")) == "" {
		return ""
	}

	return text
}

func latestAIText(ec *execution.Context) string {
	if ec.Mission == nil {
		return ""
	}

	for _, node := range slices.Backward(ec.Mission.Nodes) {
		if node.Base().Type.Kind() != models.KindAI {
			continue
		}

		out, ok := ec.NodeOutput(node.Base().ID)
		if !ok || !out.OK {
			continue
		}

		if text := strings.TrimSpace(out.Text); text != "" {
			return text
		}
	}

	return ""
}
