package output

var channelNames = map[string]string{
	ChannelTelegram: "Telegram",
	ChannelDiscord:  "Discord",
	ChannelEmail:    "Email",
	ChannelWebhook:  "Webhook",
	ChannelSlack:    "Slack",
	ChannelNovaChat: "Nova Chat",
}

func (e *Executor) Name() string {
	return channelNames[Channel(e.nodeType)] + " Output"
}

func (e *Executor) Description() string {
	return "Sends the mission output to " + channelNames[Channel(e.nodeType)] + " after the quality guardrail"
}

func (e *Executor) Schema() map[string]any {
	properties := map[string]any{
		"inputExpression": map[string]any{"type": "string"},
		"messageTemplate": map[string]any{
			"type":     "string",
			"examples": []string{"Good morning! {{nodes.summary.text}}"},
		},
		"detailLevel": map[string]any{
			"type":    "string",
			"enum":    []string{"concise", "standard", "detailed"},
			"default": defaultDetailLevel,
		},
	}

	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	switch Channel(e.nodeType) {
	case ChannelTelegram:
		properties["chatIds"] = stringList
	case ChannelEmail:
		properties["recipients"] = map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "format": "email"},
		}
		properties["subject"] = map[string]any{"type": "string"}
	case ChannelDiscord, ChannelSlack, ChannelWebhook:
		properties["webhookUrls"] = map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "pattern": "^https?://"},
		}
	}

	return map[string]any{"type": "object", "properties": properties}
}
