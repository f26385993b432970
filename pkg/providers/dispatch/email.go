package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mail "github.com/wneessen/go-mail"
)

// ErrMissingSMTPHost is returned by NewEmailSender without a server.
var ErrMissingSMTPHost = errors.New("smtp host is required")

type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender sends one plain-text message per recipient.
type EmailSender struct {
	client mailClient
	from   string
}

func NewEmailSender(cfg SMTPConfig) (*EmailSender, error) {
	if cfg.Host == "" {
		return nil, ErrMissingSMTPHost
	}

	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}

	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &EmailSender{client: client, from: from}, nil
}

func (s *EmailSender) Send(ctx context.Context, recipient string, msg Message) (int, error) {
	m, err := s.message(recipient, msg)
	if err != nil {
		return http.StatusUnprocessableEntity, err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return 0, fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}

	return 0, nil
}

// message builds the envelope. Its errors are permanent.
func (s *EmailSender) message(recipient string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", s.from, err)
	}

	if err := m.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", recipient, err)
	}

	subject := msg.Subject
	if subject == "" {
		subject = "Mission update"
	}

	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)

	return m, nil
}
