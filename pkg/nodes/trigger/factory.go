package trigger

func (e *ScheduleExecutor) Name() string { return "Schedule Trigger" }

func (e *ScheduleExecutor) Description() string {
	return "Gates the run on a daily, weekly, one-time or interval schedule in the mission timezone"
}

func (e *ScheduleExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"triggerMode": map[string]any{
				"type": "string",
				"enum": []string{"daily", "weekly", "once", "interval"},
			},
			"triggerTime": map[string]any{
				"type":        "string",
				"description": "Local wall-clock time, HH:MM",
				"pattern":     `^\d{1,2}:\d{2}$`,
				"examples":    []string{"09:00", "18:30"},
			},
			"triggerTimezone": map[string]any{
				"type":     "string",
				"examples": []string{"UTC", "America/New_York"},
			},
			"triggerDays": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"triggerIntervalMinutes": map[string]any{"type": "integer", "minimum": 0},
			"triggerWindowMinutes":   map[string]any{"type": "integer", "minimum": 0, "default": DefaultWindowMinutes},
		},
	}
}

func (e *ManualExecutor) Name() string { return "Manual Trigger" }

func (e *ManualExecutor) Description() string {
	return "Starts the mission when it is run by hand or programmatically"
}

func (e *ManualExecutor) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

func (e *WebhookExecutor) Name() string { return "Webhook Trigger" }

func (e *WebhookExecutor) Description() string {
	return "Starts the mission when its webhook endpoint receives a request"
}

func (e *WebhookExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"webhookPath":   map[string]any{"type": "string"},
			"webhookSecret": map[string]any{"type": "string", "description": "Compared against the " + SecretHeader + " header"},
		},
	}
}

func (e *EventExecutor) Name() string { return "Event Trigger" }

func (e *EventExecutor) Description() string {
	return "Starts the mission when a named event is published on the event bus"
}

func (e *EventExecutor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"eventName": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"eventName"},
	}
}
