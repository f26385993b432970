// Package dispatch implements the delivery collaborator. A Router fans a
// request out to the sender registered for its channel, one recipient at a
// time, retrying transient failures.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/nova-hud/nova/pkg/protocol"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

var (
	// ErrUnknownChannel is returned when no sender serves the channel.
	ErrUnknownChannel = errors.New("no sender registered for channel")
	// ErrNoRecipients is returned when a request names nobody to deliver to.
	ErrNoRecipients = errors.New("no recipients to deliver to")
)

// Message is what a sender delivers to one recipient.
type Message struct {
	Text      string
	Subject   string
	MissionID string
	RunID     string
	NodeID    string
	Meta      map[string]any
}

// Sender delivers a message to one recipient and reports the upstream status
// code when there is one.
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) (int, error)
}

// defaultRecipienter is implemented by senders that can deliver without
// configured recipients.
type defaultRecipienter interface {
	DefaultRecipient(req protocol.DispatchRequest) string
}

// Router implements protocol.Dispatcher.
type Router struct {
	senders  map[string]Sender
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

type Option func(*Router)

// WithRetry sets the attempts per recipient and the pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(r *Router) {
		if attempts > 0 {
			r.attempts = attempts
		}

		r.delay = delay
	}
}

func NewRouter(logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		senders:  map[string]Sender{},
		attempts: DefaultAttempts,
		delay:    DefaultRetryDelay,
		logger:   logger.With("module", "dispatch_router"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register binds a sender to a channel, replacing any previous one.
func (r *Router) Register(channel string, sender Sender) {
	r.senders[channel] = sender
}

// Channels lists the channels with a sender.
func (r *Router) Channels() []string {
	channels := make([]string, 0, len(r.senders))
	for channel := range r.senders {
		channels = append(channels, channel)
	}

	sort.Strings(channels)

	return channels
}

func (r *Router) Dispatch(ctx context.Context, req protocol.DispatchRequest) ([]protocol.DispatchResult, error) {
	sender, ok := r.senders[req.Channel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, req.Channel)
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		if d, ok := sender.(defaultRecipienter); ok {
			if recipient := d.DefaultRecipient(req); recipient != "" {
				recipients = []string{recipient}
			}
		}
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w on %s", ErrNoRecipients, req.Channel)
	}

	msg := messageFor(req)
	results := make([]protocol.DispatchResult, 0, len(recipients))

	for _, recipient := range recipients {
		status, err := r.send(ctx, sender, recipient, msg)

		result := protocol.DispatchResult{OK: err == nil, Status: status, Recipient: recipient}
		if err != nil {
			result.Error = err.Error()

			r.logger.WarnContext(ctx, "Delivery failed",
				"channel", req.Channel,
				"mission_id", msg.MissionID,
				"run_id", msg.RunID,
				"status", status,
				"error", err,
			)
		}

		results = append(results, result)
	}

	return results, nil
}

func (r *Router) send(ctx context.Context, sender Sender, recipient string, msg Message) (int, error) {
	var (
		status int
		err    error
	)

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return status, ctx.Err()
			case <-time.After(r.delay):
			}
		}

		status, err = sender.Send(ctx, recipient, msg)
		if err == nil || !retryable(status) || ctx.Err() != nil {
			return status, err
		}
	}

	return status, err
}

// retryable reports whether a failure with status is worth another attempt.
// Zero means the request never got a response.
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func messageFor(req protocol.DispatchRequest) Message {
	msg := Message{
		Text:      req.Text,
		MissionID: req.Schedule.ID,
		RunID:     req.Schedule.RunID,
		NodeID:    req.Schedule.NodeID,
		Meta:      req.Meta,
	}

	if v, ok := req.Meta["subject"].(string); ok {
		msg.Subject = v
	}

	if v, ok := req.Meta["missionId"].(string); ok && msg.MissionID == "" {
		msg.MissionID = v
	}

	if v, ok := req.Meta["runId"].(string); ok && msg.RunID == "" {
		msg.RunID = v
	}

	if v, ok := req.Meta["nodeId"].(string); ok && msg.NodeID == "" {
		msg.NodeID = v
	}

	if msg.Subject == "" {
		msg.Subject = req.Schedule.Label
	}

	return msg
}
