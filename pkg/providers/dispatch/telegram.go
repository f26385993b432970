package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultTelegramAPI = "https://api.telegram.org"
	telegramMaxMessage = 4096
)

// ErrMissingBotToken is returned by NewTelegramSender without a token.
var ErrMissingBotToken = errors.New("telegram bot token is required")

// TelegramSender posts messages through the Bot API sendMessage method. Texts
// longer than one message are split on line boundaries.
type TelegramSender struct {
	client  *http.Client
	apiBase string
	token   string
}

func NewTelegramSender(token, apiBase string, client *http.Client) (*TelegramSender, error) {
	if token == "" {
		return nil, ErrMissingBotToken
	}

	if apiBase == "" {
		apiBase = DefaultTelegramAPI
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &TelegramSender{client: client, apiBase: strings.TrimRight(apiBase, "/"), token: token}, nil
}

func (s *TelegramSender) Send(ctx context.Context, chatID string, msg Message) (int, error) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)

	var status int

	for _, part := range splitMessage(msg.Text, telegramMaxMessage) {
		body, err := json.Marshal(map[string]any{
			"chat_id":                  chatID,
			"text":                     part,
			"disable_web_page_preview": true,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to encode telegram message: %w", err)
		}

		status, err = postJSON(ctx, s.client, url, body)
		if err != nil {
			return status, fmt.Errorf("telegram sendMessage to %s: %w", chatID, redact(err, s.token))
		}
	}

	return status, nil
}

// redact keeps the bot token out of errors that quote the request URL.
func redact(err error, token string) error {
	if !strings.Contains(err.Error(), token) {
		return err
	}

	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

// splitMessage cuts text into parts of at most limit runes, preferring line
// breaks.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)

		if size+n > limit {
			flush()
		}

		for n > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}

		current.WriteString(line)
		size += n
	}

	flush()

	return parts
}
