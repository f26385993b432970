// Package output delivers mission text to notification channels. Every
// delivery is humanized and passed through the quality guardrail first.
package output

import (
	"context"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/guardrail"
	"github.com/nova-hud/nova/pkg/humanize"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/protocol"
)

// Channels.
const (
	ChannelTelegram = "telegram"
	ChannelDiscord  = "discord"
	ChannelEmail    = "email"
	ChannelWebhook  = "webhook"
	ChannelSlack    = "slack"
	ChannelNovaChat = "novachat"
)

const defaultDetailLevel = "standard"

var channels = map[models.NodeType]string{
	models.NodeTypeTelegramOutput: ChannelTelegram,
	models.NodeTypeDiscordOutput:  ChannelDiscord,
	models.NodeTypeEmailOutput:    ChannelEmail,
	models.NodeTypeWebhookOutput:  ChannelWebhook,
	models.NodeTypeSlackOutput:    ChannelSlack,
	models.NodeTypeNovaChatOutput: ChannelNovaChat,
}

// Channel returns the delivery channel of an output node type.
func Channel(t models.NodeType) string {
	return channels[t]
}

// Deps are the collaborators shared by every output executor.
type Deps struct {
	Dispatcher protocol.Dispatcher
	Guardrail  *guardrail.Guardrail
	Humanizer  *humanize.Humanizer
	Metrics    *metrics.Metrics
}

// Executor delivers to one channel.
type Executor struct {
	nodeType models.NodeType
	deps     Deps
}

// NewExecutor returns the executor for an output node type.
func NewExecutor(nodeType models.NodeType, deps Deps) *Executor {
	if deps.Guardrail == nil {
		deps.Guardrail = guardrail.New(guardrail.DefaultThreshold, deps.Metrics)
	}

	if deps.Humanizer == nil {
		deps.Humanizer = humanize.New()
	}

	return &Executor{nodeType: nodeType, deps: deps}
}

// NewExecutors returns one executor per output node type.
func NewExecutors(deps Deps) []*Executor {
	executors := make([]*Executor, 0, len(channels))

	for _, t := range models.AllNodeTypes() {
		if _, ok := channels[t]; ok {
			executors = append(executors, NewExecutor(t, deps))
		}
	}

	return executors
}

func (e *Executor) Type() models.NodeType { return e.nodeType }

func (e *Executor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(models.OutputNode)
	if !ok || node.Base().Type != e.nodeType {
		return nodes.WrongType(node, e.nodeType)
	}

	text, source := ResolveText(n, ec)

	out := e.Dispatch(ctx, n, text, Recipients(n, ec.Mission), ec)
	if out.Data != nil {
		out.Data["textSource"] = string(source)
	}

	return out
}

// Recipients returns the configured recipients of an output node. Telegram
// nodes without chat ids use the mission's.
func Recipients(node models.OutputNode, mission *models.Mission) []string {
	switch n := node.(type) {
	case *models.TelegramOutputNode:
		if len(n.ChatIDs) == 0 && mission != nil {
			return mission.ChatIDs
		}

		return n.ChatIDs
	case *models.DiscordOutputNode:
		return n.WebhookURLs
	case *models.EmailOutputNode:
		return n.Recipients
	case *models.WebhookOutputNode:
		return n.WebhookURLs
	case *models.SlackOutputNode:
		return n.WebhookURLs
	default:
		return nil
	}
}

// Dispatch humanizes text, runs the guardrail over it with the upstream
// evidence and hands it to the dispatcher. The node outcome mirrors the
// first recipient's result; every result is kept in data.results.
func (e *Executor) Dispatch(ctx context.Context, node models.OutputNode, text string, recipients []string, ec *execution.Context) models.NodeOutput {
	channel := Channel(e.nodeType)
	nodeID := node.Base().ID

	if strings.TrimSpace(text) == "" {
		return models.Failed("no output text to dispatch on "+channel, nodes.CodeNoInput)
	}

	if e.deps.Dispatcher == nil {
		return models.Failed("no dispatcher configured for "+channel, nodes.CodeCollaborator)
	}

	detail := node.Output().DetailLevel
	if detail == "" {
		detail = defaultDetailLevel
	}

	humanized := e.deps.Humanizer.Text(text)
	evidence := Evidence(ec, nodeID)
	decision := e.deps.Guardrail.Apply(humanized, evidence, detail)

	meta := map[string]any{
		"missionId":    ec.MissionID(),
		"nodeId":       nodeID,
		"runId":        ec.RunID,
		"qualityScore": decision.Original.Score,
		"substituted":  decision.Substituted,
		"evidenceRows": len(evidence),
	}

	if email, ok := node.(*models.EmailOutputNode); ok {
		subject := strings.TrimSpace(ec.ResolveExpr(email.Subject))
		if subject == "" {
			subject = ec.MissionLabel()
		}

		meta["subject"] = subject
	}

	results, err := e.deps.Dispatcher.Dispatch(ctx, protocol.DispatchRequest{
		Channel:    channel,
		Text:       decision.Text,
		Recipients: recipients,
		Schedule:   legacySchedule(channel, decision.Text, recipients, nodeID, detail, ec),
		Scope:      ec.Scope,
		Meta:       meta,
	})
	if err != nil {
		e.deps.Metrics.ObserveDispatch(channel, false)

		return models.Failed(err.Error(), nodes.CodeCollaborator)
	}

	rows := make([]any, 0, len(results))
	for _, r := range results {
		e.deps.Metrics.ObserveDispatch(channel, r.OK)

		rows = append(rows, map[string]any{
			"ok":        r.OK,
			"error":     r.Error,
			"status":    r.Status,
			"recipient": r.Recipient,
		})
	}

	quality := map[string]any{
		"score":       decision.Original.Score,
		"lowSignal":   decision.Original.LowSignal,
		"substituted": decision.Substituted,
	}
	if decision.Fallback != nil {
		quality["fallbackScore"] = decision.Fallback.Score
	}

	out := models.NodeOutput{
		OK:   true,
		Text: decision.Text,
		Data: map[string]any{
			"channel":    channel,
			"recipients": recipients,
			"results":    rows,
			"quality":    quality,
		},
	}

	if len(results) == 0 {
		out.OK = false
		out.Error = "dispatch returned no results"
		out.ErrorCode = nodes.CodeDispatchRejected

		return out
	}

	if first := results[0]; !first.OK {
		out.OK = false
		out.Error = first.Error
		out.ErrorCode = nodes.CodeDispatchRejected

		if out.Error == "" {
			out.Error = "dispatch rejected"
		}
	}

	return out
}

// Evidence collects the items of successful upstream outputs. An output
// contributes its Items when it has any, and otherwise the items or result
// rows of its data, so no row is counted twice.
func Evidence(ec *execution.Context, nodeID string) []any {
	var evidence []any

	for _, id := range ec.Upstream(nodeID) {
		out, ok := ec.NodeOutput(id)
		if !ok || !out.OK {
			continue
		}

		if len(out.Items) > 0 {
			evidence = append(evidence, out.Items...)

			continue
		}

		if items, ok := out.Data["items"].([]any); ok && len(items) > 0 {
			evidence = append(evidence, items...)

			continue
		}

		if results, ok := out.Data["results"].([]any); ok && len(results) > 0 {
			evidence = append(evidence, map[string]any{"results": results})
		}
	}

	return evidence
}

func legacySchedule(channel, text string, recipients []string, nodeID, detail string, ec *execution.Context) models.LegacySchedule {
	schedule := models.LegacySchedule{
		ID:          ec.MissionID(),
		Label:       ec.MissionLabel(),
		Integration: channel,
		ChatIDs:     recipients,
		Message:     text,
		Timezone:    ec.Timezone(),
		Enabled:     true,
		RunSource:   ec.RunSource,
		RunID:       ec.RunID,
		RunKey:      ec.RunKey,
		Attempt:     ec.Attempt,
		NodeID:      nodeID,
		DetailLevel: detail,
		CreatedAt:   ec.Now,
		LastRunAt:   ec.LastRunAt,
	}

	if ec.Mission != nil {
		for _, node := range ec.Mission.Nodes {
			if trigger, ok := node.(*models.ScheduleTriggerNode); ok {
				schedule.Time = trigger.TriggerTime

				break
			}
		}
	}

	return schedule
}
