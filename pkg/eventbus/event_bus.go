// Package eventbus carries mission lifecycle events between the API, the
// scheduler and the workers.
package eventbus

import (
	"context"

	"github.com/nova-hud/nova/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// Nop discards every published event. It lets the runner work without a bus.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
