package dispatch

import (
	"log/slog"
	"net/http"
	"time"
)

// Channel names served by the default router.
const (
	ChannelTelegram = "telegram"
	ChannelDiscord  = "discord"
	ChannelEmail    = "email"
	ChannelWebhook  = "webhook"
	ChannelSlack    = "slack"
	ChannelNovaChat = "novachat"
)

// Config selects the credentials of the default channels.
type Config struct {
	TelegramToken   string
	TelegramAPIBase string
	SMTP            SMTPConfig
	InboxSize       int
	Timeout         time.Duration
}

// NewDefault builds a router with every channel that has credentials. The
// webhook channels and the in-process inbox need none.
func NewDefault(cfg Config, logger *slog.Logger, opts ...Option) (*Router, *Inbox, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	router := NewRouter(logger, opts...)
	inbox := NewInbox(cfg.InboxSize)

	router.Register(ChannelDiscord, NewDiscordSender(client))
	router.Register(ChannelSlack, NewSlackSender(client))
	router.Register(ChannelWebhook, NewGenericWebhookSender(client))
	router.Register(ChannelNovaChat, inbox)

	if cfg.TelegramToken != "" {
		telegram, err := NewTelegramSender(cfg.TelegramToken, cfg.TelegramAPIBase, client)
		if err != nil {
			return nil, nil, err
		}

		router.Register(ChannelTelegram, telegram)
	}

	if cfg.SMTP.Host != "" {
		email, err := NewEmailSender(cfg.SMTP)
		if err != nil {
			return nil, nil, err
		}

		router.Register(ChannelEmail, email)
	}

	return router, inbox, nil
}
