package workflow

import (
	"context"

	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/events"
)

// RequestRun publishes a run request for trigger, keyed by mission so that
// the runs of one mission stay ordered on partitioned buses.
func RequestRun(ctx context.Context, publisher eventbus.EventPublisher, trigger Trigger) error {
	event := events.RunRequested{
		BaseEvent:      events.NewBaseEvent(events.RunRequestedEvent, trigger.MissionID),
		Source:         trigger.Source,
		RunKey:         trigger.RunKey,
		TriggerPayload: trigger.Payload,
		Variables:      trigger.Variables,
		Scope:          trigger.Scope,
	}
	event.RunID = trigger.RunID

	if !trigger.Now.IsZero() {
		event.Timestamp = trigger.Now.UTC()
	}

	return publisher.Publish(ctx, trigger.MissionID, event)
}

// Requester hands runs to the workers through the event bus instead of
// executing them. Execute returns a nil result once the request is published.
type Requester struct {
	publisher eventbus.EventPublisher
}

func NewRequester(publisher eventbus.EventPublisher) *Requester {
	return &Requester{publisher: publisher}
}

func (r *Requester) Execute(ctx context.Context, trigger Trigger) (*Result, error) {
	return nil, RequestRun(ctx, r.publisher, trigger)
}
