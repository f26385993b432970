// Package trigger provides the gate executors that decide whether a run
// proceeds past its trigger nodes.
package trigger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
)

// State is the computed position of "now" relative to a schedule.
type State string

const (
	StateNotDue          State = "NOT_DUE"
	StateDueWithinWindow State = "DUE_WITHIN_WINDOW"
	StateMissedWindow    State = "MISSED_WINDOW"
	StateAlreadyRan      State = "ALREADY_RAN"
)

// DefaultWindowMinutes is the lag tolerated after the target minute.
const DefaultWindowMinutes = 10

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ScheduleExecutor evaluates schedule-trigger nodes.
type ScheduleExecutor struct{}

func NewScheduleExecutor() *ScheduleExecutor {
	return &ScheduleExecutor{}
}

func (e *ScheduleExecutor) Type() models.NodeType {
	return models.NodeTypeScheduleTrigger
}

func (e *ScheduleExecutor) Execute(_ context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	n, ok := node.(*models.ScheduleTriggerNode)
	if !ok {
		return nodes.WrongType(node, e.Type())
	}

	return Evaluate(n, ec)
}

// Evaluate computes the gate decision of a schedule trigger.
func Evaluate(n *models.ScheduleTriggerNode, ec *execution.Context) models.NodeOutput {
	mode := n.TriggerMode
	if mode == "" {
		mode = "daily"
	}

	switch ec.RunSource {
	case models.RunSourceManual, models.RunSourceTrigger:
		return decision(true, StateDueWithinWindow, fmt.Sprintf("%s run bypasses the schedule", ec.RunSource), map[string]any{"mode": mode})
	case models.RunSourceWebhook, models.RunSourceEvent:
		return decision(false, StateNotDue, fmt.Sprintf("%s runs do not drive schedule triggers", ec.RunSource), map[string]any{"mode": mode})
	}

	if mode == "interval" {
		return evaluateInterval(n, ec)
	}

	tzName := n.TriggerTimezone
	if tzName == "" {
		tzName = ec.Timezone()
	}

	if tzName == "" {
		tzName = "UTC"
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return models.Failed(fmt.Sprintf("invalid timezone %q: %v", tzName, err), nodes.CodeInvalidTimezone)
	}

	hour, minute, err := models.ParseClock(n.TriggerTime)
	if err != nil {
		return models.Failed(fmt.Sprintf("invalid trigger time %q", n.TriggerTime), nodes.CodeInvalidTime)
	}

	window := n.TriggerWindowMinutes
	if window <= 0 {
		window = DefaultWindowMinutes
	}

	local := ec.Now.In(loc)
	target := hour*60 + minute
	nowMinutes := local.Hour()*60 + local.Minute()
	lag := nowMinutes - target

	extra := map[string]any{
		"mode":          mode,
		"timezone":      tzName,
		"localTime":     local.Format("15:04"),
		"triggerTime":   fmt.Sprintf("%02d:%02d", hour, minute),
		"lagMinutes":    lag,
		"windowMinutes": window,
	}

	if next, err := n.NextRunAt(tzName, ec.Now); err == nil {
		extra["nextRunAt"] = next.UTC().Format(time.RFC3339)
	}

	if (mode == "weekly" || mode == "once") && len(n.TriggerDays) > 0 && !scheduledOn(n.TriggerDays, local.Weekday()) {
		return decision(false, StateNotDue, fmt.Sprintf("not scheduled on %s", local.Weekday()), extra)
	}

	if mode == "once" && ec.LastRunAt != nil {
		return decision(false, StateAlreadyRan, "one-time mission already ran", extra)
	}

	if lag < 0 {
		return decision(false, StateNotDue, fmt.Sprintf("not yet time: scheduled %s, now %s", extra["triggerTime"], extra["localTime"]), extra)
	}

	if mode != "once" && ranToday(ec.LastRunAt, local, target) {
		return decision(false, StateAlreadyRan, fmt.Sprintf("already ran today after %s", extra["triggerTime"]), extra)
	}

	if lag > window {
		return decision(false, StateMissedWindow, fmt.Sprintf("missed window: %d minutes late, window is %d", lag, window), extra)
	}

	return decision(true, StateDueWithinWindow, fmt.Sprintf("due: %d minutes into a %d minute window", lag, window), extra)
}

func evaluateInterval(n *models.ScheduleTriggerNode, ec *execution.Context) models.NodeOutput {
	interval := n.TriggerIntervalMinutes
	extra := map[string]any{"mode": "interval", "intervalMinutes": interval}

	if ec.LastRunAt == nil {
		return decision(true, StateDueWithinWindow, "first run", extra)
	}

	elapsed := ec.Now.Sub(*ec.LastRunAt)
	extra["elapsedMinutes"] = int(elapsed.Minutes())
	extra["nextRunAt"] = ec.LastRunAt.Add(time.Duration(interval) * time.Minute).UTC().Format(time.RFC3339)

	if elapsed >= time.Duration(interval)*time.Minute {
		return decision(true, StateDueWithinWindow, fmt.Sprintf("%d minutes since last run", int(elapsed.Minutes())), extra)
	}

	remaining := time.Duration(interval)*time.Minute - elapsed

	return decision(false, StateNotDue, fmt.Sprintf("next run in %d minutes", int(remaining.Round(time.Minute).Minutes())), extra)
}

func ranToday(lastRunAt *time.Time, local time.Time, target int) bool {
	if lastRunAt == nil {
		return false
	}

	last := lastRunAt.In(local.Location())
	if last.Year() != local.Year() || last.YearDay() != local.YearDay() {
		return false
	}

	return last.Hour()*60+last.Minute() >= target
}

func scheduledOn(days []string, weekday time.Weekday) bool {
	for _, day := range days {
		if parseDay(day) == weekday {
			return true
		}
	}

	return false
}

func parseDay(day string) time.Weekday {
	key := strings.ToLower(strings.TrimSpace(day))

	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n)
	}

	if len(key) > 3 {
		key = key[:3]
	}

	if weekday, ok := dayNames[key]; ok {
		return weekday
	}

	return -1
}

// decision builds the always-ok gate output.
func decision(triggered bool, state State, reason string, extra map[string]any) models.NodeOutput {
	data := map[string]any{
		"triggered": triggered,
		"skipped":   !triggered,
		"state":     string(state),
		"reason":    reason,
	}

	for k, v := range extra {
		data[k] = v
	}

	return models.NodeOutput{OK: true, Data: data}
}
