package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	return loc
}

func dailyNode() *models.ScheduleTriggerNode {
	return &models.ScheduleTriggerNode{
		NodeBase:             models.NodeBase{ID: "t", Type: models.NodeTypeScheduleTrigger},
		TriggerMode:          "daily",
		TriggerTime:          "09:00",
		TriggerTimezone:      "America/New_York",
		TriggerWindowMinutes: 10,
	}
}

func scheduledContext(now time.Time, lastRunAt *time.Time) *execution.Context {
	mission := &models.Mission{ID: "m"}

	return execution.New(mission,
		execution.WithRunSource(models.RunSourceSchedule),
		execution.WithNow(now),
		execution.WithLastRunAt(lastRunAt),
	)
}

func TestSchedule_DailyWindow(t *testing.T) {
	loc := newYork(t)

	testCases := []struct {
		name      string
		clock     time.Time
		triggered bool
		state     State
		reason    string
	}{
		{"within window", time.Date(2026, 3, 10, 9, 5, 0, 0, loc), true, StateDueWithinWindow, "due"},
		{"missed window", time.Date(2026, 3, 10, 9, 15, 0, 0, loc), false, StateMissedWindow, "missed window"},
		{"not yet time", time.Date(2026, 3, 10, 8, 55, 0, 0, loc), false, StateNotDue, "not yet time"},
		{"exact minute", time.Date(2026, 3, 10, 9, 0, 0, 0, loc), true, StateDueWithinWindow, "due"},
		{"window edge", time.Date(2026, 3, 10, 9, 10, 0, 0, loc), true, StateDueWithinWindow, "due"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := NewScheduleExecutor().Execute(context.Background(), dailyNode(), scheduledContext(tc.clock.UTC(), nil))

			require.True(t, out.OK)
			assert.Equal(t, tc.triggered, out.Data["triggered"])
			assert.Equal(t, !tc.triggered, out.Data["skipped"])
			assert.Equal(t, string(tc.state), out.Data["state"])
			assert.Contains(t, out.Data["reason"], tc.reason)
		})
	}
}

func TestSchedule_AlreadyRanToday(t *testing.T) {
	loc := newYork(t)
	last := time.Date(2026, 3, 10, 9, 1, 0, 0, loc)

	out := Evaluate(dailyNode(), scheduledContext(time.Date(2026, 3, 10, 9, 6, 0, 0, loc), &last))

	require.True(t, out.OK)
	assert.Equal(t, false, out.Data["triggered"])
	assert.Equal(t, string(StateAlreadyRan), out.Data["state"])

	yesterday := last.AddDate(0, 0, -1)
	out = Evaluate(dailyNode(), scheduledContext(time.Date(2026, 3, 10, 9, 6, 0, 0, loc), &yesterday))
	assert.Equal(t, true, out.Data["triggered"])
}

func TestSchedule_MissionTimezoneFallback(t *testing.T) {
	loc := newYork(t)
	node := dailyNode()
	node.TriggerTimezone = ""

	mission := &models.Mission{ID: "m", Settings: models.MissionSettings{Timezone: "America/New_York"}}
	ec := execution.New(mission, execution.WithRunSource(models.RunSourceSchedule), execution.WithNow(time.Date(2026, 3, 10, 9, 3, 0, 0, loc)))

	out := Evaluate(node, ec)
	assert.Equal(t, true, out.Data["triggered"])
	assert.Equal(t, "America/New_York", out.Data["timezone"])
	assert.NotEmpty(t, out.Data["nextRunAt"])
}

func TestSchedule_WeeklyGatesOnDays(t *testing.T) {
	loc := newYork(t)
	node := dailyNode()
	node.TriggerMode = "weekly"
	node.TriggerDays = []string{"monday", "wed"}

	tuesday := time.Date(2026, 3, 10, 9, 2, 0, 0, loc)
	out := Evaluate(node, scheduledContext(tuesday, nil))
	assert.Equal(t, false, out.Data["triggered"])
	assert.Contains(t, out.Data["reason"], "Tuesday")

	wednesday := time.Date(2026, 3, 11, 9, 2, 0, 0, loc)
	out = Evaluate(node, scheduledContext(wednesday, nil))
	assert.Equal(t, true, out.Data["triggered"])
}

func TestSchedule_OnceRunsOnlyOnce(t *testing.T) {
	loc := newYork(t)
	node := dailyNode()
	node.TriggerMode = "once"

	now := time.Date(2026, 3, 10, 9, 2, 0, 0, loc)
	assert.Equal(t, true, Evaluate(node, scheduledContext(now, nil)).Data["triggered"])

	last := now.AddDate(0, 0, -7)
	out := Evaluate(node, scheduledContext(now, &last))
	assert.Equal(t, string(StateAlreadyRan), out.Data["state"])
}

func TestSchedule_Interval(t *testing.T) {
	node := &models.ScheduleTriggerNode{
		NodeBase:               models.NodeBase{ID: "t", Type: models.NodeTypeScheduleTrigger},
		TriggerMode:            "interval",
		TriggerIntervalMinutes: 30,
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	out := Evaluate(node, scheduledContext(now, nil))
	assert.Equal(t, true, out.Data["triggered"], "no prior run always triggers")

	recent := now.Add(-10 * time.Minute)
	out = Evaluate(node, scheduledContext(now, &recent))
	assert.Equal(t, false, out.Data["triggered"])
	assert.Contains(t, out.Data["reason"], "next run in 20 minutes")

	old := now.Add(-30 * time.Minute)
	assert.Equal(t, true, Evaluate(node, scheduledContext(now, &old)).Data["triggered"])
}

func TestSchedule_ManualBypassesGate(t *testing.T) {
	loc := newYork(t)
	ec := execution.New(&models.Mission{ID: "m"},
		execution.WithRunSource(models.RunSourceManual),
		execution.WithNow(time.Date(2026, 3, 10, 3, 0, 0, 0, loc)))

	out := Evaluate(dailyNode(), ec)
	assert.True(t, out.OK)
	assert.Equal(t, true, out.Data["triggered"])
}

func TestSchedule_InvalidConfigurationFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	badZone := dailyNode()
	badZone.TriggerTimezone = "Mars/Olympus"
	out := Evaluate(badZone, scheduledContext(now, nil))
	assert.False(t, out.OK)
	assert.Equal(t, nodes.CodeInvalidTimezone, out.ErrorCode)

	badTime := dailyNode()
	badTime.TriggerTime = "nine"
	out = Evaluate(badTime, scheduledContext(now, nil))
	assert.False(t, out.OK)
	assert.Equal(t, nodes.CodeInvalidTime, out.ErrorCode)
}

func TestWebhook_SecretAndSource(t *testing.T) {
	node := &models.WebhookTriggerNode{
		NodeBase:      models.NodeBase{ID: "w", Type: models.NodeTypeWebhookTrigger},
		WebhookSecret: "s3cret",
	}

	run := func(source models.RunSource, payload map[string]any) models.NodeOutput {
		ec := execution.New(&models.Mission{ID: "m"}, execution.WithRunSource(source), execution.WithTriggerPayload(payload))

		return NewWebhookExecutor().Execute(context.Background(), node, ec)
	}

	good := map[string]any{
		"headers": map[string]any{"x-nova-webhook-secret": "s3cret"},
		"body":    map[string]any{"title": "deploy done"},
	}
	out := run(models.RunSourceWebhook, good)
	assert.Equal(t, true, out.Data["triggered"])
	assert.JSONEq(t, `{"title":"deploy done"}`, out.Text)

	bad := map[string]any{"headers": map[string]any{SecretHeader: "nope"}}
	assert.Equal(t, false, run(models.RunSourceWebhook, bad).Data["triggered"])
	assert.Equal(t, false, run(models.RunSourceSchedule, good).Data["triggered"])
}

func TestEvent_MatchesName(t *testing.T) {
	node := &models.EventTriggerNode{NodeBase: models.NodeBase{ID: "e", Type: models.NodeTypeEventTrigger}, EventName: "price.alert"}

	ec := execution.New(&models.Mission{ID: "m"}, execution.WithRunSource(models.RunSourceEvent),
		execution.WithTriggerPayload(map[string]any{"event": "price.alert"}))
	assert.Equal(t, true, NewEventExecutor().Execute(context.Background(), node, ec).Data["triggered"])

	ec = execution.New(&models.Mission{ID: "m"}, execution.WithRunSource(models.RunSourceEvent),
		execution.WithTriggerPayload(map[string]any{"event": "other"}))
	assert.Equal(t, false, NewEventExecutor().Execute(context.Background(), node, ec).Data["triggered"])
}

func TestManual_DeclinesScheduledRuns(t *testing.T) {
	node := &models.ManualTriggerNode{NodeBase: models.NodeBase{ID: "m", Type: models.NodeTypeManualTrigger}}
	ec := execution.New(&models.Mission{ID: "m"}, execution.WithRunSource(models.RunSourceSchedule))

	out := NewManualExecutor().Execute(context.Background(), node, ec)
	assert.True(t, out.OK)
	assert.Equal(t, false, out.Data["triggered"])
}

func TestSchedule_WrongNodeType(t *testing.T) {
	out := NewScheduleExecutor().Execute(context.Background(), &models.SplitNode{NodeBase: models.NodeBase{ID: "x", Type: models.NodeTypeSplit}}, scheduledContext(time.Now(), nil))

	assert.False(t, out.OK)
	assert.Equal(t, nodes.CodeInvalidNode, out.ErrorCode)
}
