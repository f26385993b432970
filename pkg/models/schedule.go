package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a trigger cannot be expressed as a cron schedule.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// LegacySchedule is the flat schedule record handed to the dispatch
// collaborator. It carries mission metadata alongside the delivery settings.
type LegacySchedule struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Integration string     `json:"integration"`
	ChatIDs     []string   `json:"chatIds,omitempty"`
	Message     string     `json:"message"`
	Time        string     `json:"time,omitempty"`
	Timezone    string     `json:"timezone"`
	Enabled     bool       `json:"enabled"`
	RunSource   RunSource  `json:"runSource"`
	RunID       string     `json:"runId"`
	RunKey      string     `json:"runKey,omitempty"`
	Attempt     int        `json:"attempt"`
	NodeID      string     `json:"nodeId"`
	DetailLevel string     `json:"detailLevel,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
}

var weekdays = map[string]string{
	"sun": "0", "mon": "1", "tue": "2", "wed": "3", "thu": "4", "fri": "5", "sat": "6",
}

// CronExpression expresses a schedule trigger as a standard 5-field cron
// expression prefixed with its timezone.
func (n *ScheduleTriggerNode) CronExpression(fallbackTimezone string) (string, error) {
	tz := n.TriggerTimezone
	if tz == "" {
		tz = fallbackTimezone
	}

	if tz == "" {
		tz = "UTC"
	}

	if n.TriggerMode == "interval" {
		if n.TriggerIntervalMinutes <= 0 {
			return "", fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
		}

		return fmt.Sprintf("@every %dm", n.TriggerIntervalMinutes), nil
	}

	hour, minute, err := ParseClock(n.TriggerTime)
	if err != nil {
		return "", err
	}

	dow := "*"

	if n.TriggerMode == "weekly" || n.TriggerMode == "once" {
		days := make([]string, 0, len(n.TriggerDays))

		for _, day := range n.TriggerDays {
			key := strings.ToLower(day)
			if len(key) > 3 {
				key = key[:3]
			}

			if num, ok := weekdays[key]; ok {
				days = append(days, num)
			}
		}

		if len(days) > 0 {
			dow = strings.Join(days, ",")
		}
	}

	return fmt.Sprintf("CRON_TZ=%s %d %d * * %s", tz, minute, hour, dow), nil
}

// NextRunAt returns the next time the trigger would fire after from.
func (n *ScheduleTriggerNode) NextRunAt(fallbackTimezone string, from time.Time) (time.Time, error) {
	expr, err := n.CronExpression(fallbackTimezone)
	if err != nil {
		return time.Time{}, err
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return schedule.Next(from), nil
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(value string) (int, int, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, value)
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour in %q", ErrInvalidSchedule, value)
	}

	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute in %q", ErrInvalidSchedule, value)
	}

	return hour, minute, nil
}
