package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nova-hud/nova/pkg/textutil"
)

const (
	discordMaxContent = 2000
	slackMaxText      = 40000
)

// PayloadFunc renders the JSON body posted for a message.
type PayloadFunc func(msg Message) any

// WebhookSender posts a JSON document to the recipient URL.
type WebhookSender struct {
	client  *http.Client
	payload PayloadFunc
}

func NewWebhookSender(client *http.Client, payload PayloadFunc) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &WebhookSender{client: client, payload: payload}
}

// NewDiscordSender posts to Discord incoming webhooks.
func NewDiscordSender(client *http.Client) *WebhookSender {
	return NewWebhookSender(client, func(msg Message) any {
		return map[string]any{"content": textutil.TruncateWords(msg.Text, discordMaxContent)}
	})
}

// NewSlackSender posts to Slack incoming webhooks.
func NewSlackSender(client *http.Client) *WebhookSender {
	return NewWebhookSender(client, func(msg Message) any {
		return map[string]any{"text": textutil.TruncateWords(msg.Text, slackMaxText)}
	})
}

// NewGenericWebhookSender posts the text with its run identifiers.
func NewGenericWebhookSender(client *http.Client) *WebhookSender {
	return NewWebhookSender(client, func(msg Message) any {
		return map[string]any{
			"text":      msg.Text,
			"missionId": msg.MissionID,
			"runId":     msg.RunID,
			"nodeId":    msg.NodeID,
			"meta":      msg.Meta,
			"sentAt":    time.Now().UTC().Format(time.RFC3339),
		}
	})
}

func (s *WebhookSender) Send(ctx context.Context, recipient string, msg Message) (int, error) {
	body, err := json.Marshal(s.payload(msg))
	if err != nil {
		return 0, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	return postJSON(ctx, s.client, recipient, body)
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return resp.StatusCode, nil
}
