// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nova-hud/nova/pkg/models"
)

// CreateTestMission creates an enabled mission with default values that can be overridden.
func CreateTestMission(overrides ...func(*models.Mission)) *models.Mission {
	mission := &models.Mission{
		ID:       uuid.New().String(),
		Label:    "Test Mission",
		Enabled:  true,
		ChatIDs:  []string{"42"},
		Settings: models.MissionSettings{Timezone: "UTC"},
	}

	for _, override := range overrides {
		override(mission)
	}

	return mission
}

// WithMissionID sets the mission ID.
func WithMissionID(id string) func(*models.Mission) {
	return func(m *models.Mission) {
		m.ID = id
	}
}

// WithLabel sets the mission label.
func WithLabel(label string) func(*models.Mission) {
	return func(m *models.Mission) {
		m.Label = label
	}
}

// WithEnabled sets the mission enabled flag.
func WithEnabled(enabled bool) func(*models.Mission) {
	return func(m *models.Mission) {
		m.Enabled = enabled
	}
}

// WithTimezone sets the mission timezone.
func WithTimezone(tz string) func(*models.Mission) {
	return func(m *models.Mission) {
		m.Settings.Timezone = tz
	}
}

// WithNodes appends nodes to the mission.
func WithNodes(nodes ...models.Node) func(*models.Mission) {
	return func(m *models.Mission) {
		m.Nodes = append(m.Nodes, nodes...)
	}
}

// WithEdge connects source to target. A source of the form "node:port"
// connects that port only.
func WithEdge(source, target string) func(*models.Mission) {
	return func(m *models.Mission) {
		m.Connections = append(m.Connections, CreateTestConnection(source, target))
	}
}

// WithChain connects each node id to the next one.
func WithChain(ids ...string) func(*models.Mission) {
	return func(m *models.Mission) {
		for i := 1; i < len(ids); i++ {
			m.Connections = append(m.Connections, CreateTestConnection(ids[i-1], ids[i]))
		}
	}
}

// CreateTestConnection creates a connection, splitting a "node:port" source.
func CreateTestConnection(source, target string) *models.Connection {
	conn := &models.Connection{
		ID:     fmt.Sprintf("%s->%s", source, target),
		Source: source,
		Target: target,
	}
	conn.Normalize()

	return conn
}

func base(id string, t models.NodeType) models.NodeBase {
	return models.NodeBase{ID: id, Type: t, Label: id}
}

// ManualTrigger creates a manual trigger node.
func ManualTrigger(id string) *models.ManualTriggerNode {
	return &models.ManualTriggerNode{NodeBase: base(id, models.NodeTypeManualTrigger)}
}

// DailyTrigger creates a daily schedule trigger firing at clock ("HH:MM") UTC.
func DailyTrigger(id, clock string) *models.ScheduleTriggerNode {
	return &models.ScheduleTriggerNode{
		NodeBase:        base(id, models.NodeTypeScheduleTrigger),
		TriggerMode:     "daily",
		TriggerTime:     clock,
		TriggerTimezone: "UTC",
	}
}

// IntervalTrigger creates a schedule trigger firing every minutes.
func IntervalTrigger(id string, minutes int) *models.ScheduleTriggerNode {
	return &models.ScheduleTriggerNode{
		NodeBase:               base(id, models.NodeTypeScheduleTrigger),
		TriggerMode:            "interval",
		TriggerIntervalMinutes: minutes,
	}
}

// WebhookTrigger creates a webhook trigger listening on path.
func WebhookTrigger(id, path, secret string) *models.WebhookTriggerNode {
	return &models.WebhookTriggerNode{
		NodeBase:      base(id, models.NodeTypeWebhookTrigger),
		WebhookPath:   path,
		WebhookSecret: secret,
	}
}

// Condition creates a condition node evaluating a sandboxed expression.
func Condition(id, expression string) *models.ConditionNode {
	return &models.ConditionNode{NodeBase: base(id, models.NodeTypeCondition), Expression: expression}
}

// Code creates a code node running script.
func Code(id, script string) *models.CodeNode {
	return &models.CodeNode{NodeBase: base(id, models.NodeTypeCode), Code: script}
}

// Merge creates a merge node in mode "all" or "any".
func Merge(id, mode string) *models.MergeNode {
	return &models.MergeNode{NodeBase: base(id, models.NodeTypeMerge), Mode: mode}
}

// Split creates a split node.
func Split(id string) *models.SplitNode {
	return &models.SplitNode{NodeBase: base(id, models.NodeTypeSplit)}
}

// StickyNote creates a canvas note.
func StickyNote(id, content string) *models.StickyNoteNode {
	return &models.StickyNoteNode{NodeBase: base(id, models.NodeTypeStickyNote), Content: content}
}

// Telegram creates a telegram output node sending to chatIDs, or to the
// mission chats when none are given.
func Telegram(id string, chatIDs ...string) *models.TelegramOutputNode {
	return &models.TelegramOutputNode{NodeBase: base(id, models.NodeTypeTelegramOutput), ChatIDs: chatIDs}
}

// CreateTestRun creates a completed run record of missionID.
func CreateTestRun(missionID string, overrides ...func(*models.RunRecord)) *models.RunRecord {
	run := &models.RunRecord{
		ID:        uuid.New().String(),
		MissionID: missionID,
		Source:    models.RunSourceManual,
		Status:    models.RunStatusCompleted,
		Attempt:   1,
	}
	run.RunKey = fmt.Sprintf("%s:%s:%s", missionID, run.Source, run.ID)

	for _, override := range overrides {
		override(run)
	}

	return run
}
