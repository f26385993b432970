package trigger

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/template"
)

// SecretHeader carries the shared secret of webhook-triggered runs.
const SecretHeader = "X-Nova-Webhook-Secret"

func bypass(source models.RunSource) bool {
	return source == models.RunSourceManual || source == models.RunSourceTrigger
}

// ManualExecutor fires for manual and programmatic runs only.
type ManualExecutor struct{}

func NewManualExecutor() *ManualExecutor { return &ManualExecutor{} }

func (e *ManualExecutor) Type() models.NodeType { return models.NodeTypeManualTrigger }

func (e *ManualExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	if _, ok := node.(*models.ManualTriggerNode); !ok {
		return nodes.WrongType(node, e.Type())
	}

	if bypass(ec.RunSource) {
		return decision(true, StateDueWithinWindow, fmt.Sprintf("%s run", ec.RunSource), nil)
	}

	return decision(false, StateNotDue, fmt.Sprintf("manual trigger ignores %s runs", ec.RunSource), nil)
}

// WebhookExecutor fires for webhook runs whose path and secret match.
type WebhookExecutor struct{}

func NewWebhookExecutor() *WebhookExecutor { return &WebhookExecutor{} }

func (e *WebhookExecutor) Type() models.NodeType { return models.NodeTypeWebhookTrigger }

func (e *WebhookExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.WebhookTriggerNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	body := ec.TriggerPayload["body"]

	if bypass(ec.RunSource) {
		return withPayload(decision(true, StateDueWithinWindow, fmt.Sprintf("%s run", ec.RunSource), nil), body)
	}

	if ec.RunSource != models.RunSourceWebhook {
		return decision(false, StateNotDue, fmt.Sprintf("webhook trigger ignores %s runs", ec.RunSource), nil)
	}

	if n.WebhookPath != "" {
		path, _ := ec.TriggerPayload["path"].(string)
		if strings.Trim(path, "/") != strings.Trim(n.WebhookPath, "/") {
			return decision(false, StateNotDue, "webhook path does not match", nil)
		}
	}

	if n.WebhookSecret != "" && !secretMatches(n.WebhookSecret, ec.TriggerPayload) {
		return decision(false, StateNotDue, "webhook secret mismatch", nil)
	}

	return withPayload(decision(true, StateDueWithinWindow, "webhook received", nil), body)
}

func secretMatches(secret string, payload map[string]any) bool {
	var got string

	if headers, ok := payload["headers"].(map[string]any); ok {
		for name, value := range headers {
			if strings.EqualFold(name, SecretHeader) {
				got, _ = value.(string)
			}
		}
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// EventExecutor fires for event runs carrying the configured event name.
type EventExecutor struct{}

func NewEventExecutor() *EventExecutor { return &EventExecutor{} }

func (e *EventExecutor) Type() models.NodeType { return models.NodeTypeEventTrigger }

func (e *EventExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.EventTriggerNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	body := ec.TriggerPayload["body"]

	if bypass(ec.RunSource) {
		return withPayload(decision(true, StateDueWithinWindow, fmt.Sprintf("%s run", ec.RunSource), nil), body)
	}

	if ec.RunSource != models.RunSourceEvent {
		return decision(false, StateNotDue, fmt.Sprintf("event trigger ignores %s runs", ec.RunSource), nil)
	}

	name, _ := ec.TriggerPayload["event"].(string)
	if !strings.EqualFold(name, n.EventName) {
		return decision(false, StateNotDue, fmt.Sprintf("event %q does not match %q", name, n.EventName), nil)
	}

	return withPayload(decision(true, StateDueWithinWindow, fmt.Sprintf("event %s received", name), nil), body)
}

func withPayload(out models.NodeOutput, body any) models.NodeOutput {
	if body == nil {
		return out
	}

	out.Data["payload"] = body
	out.Text = template.Stringify(body)

	return out
}
