// Package events defines the run lifecycle notifications carried on the event bus.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/nova-hud/nova/pkg/models"
)

type EventType string

// Topic carries every mission lifecycle event.
const Topic = "nova.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunRequestedEvent  EventType = "mission.run.requested"
	RunStartedEvent    EventType = "mission.run.started"
	NodeCompletedEvent EventType = "mission.node.completed"
	RunFinishedEvent   EventType = "mission.run.finished"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	MissionID string         `json:"mission_id"`
	RunID     string         `json:"run_id,omitempty"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RunRequested asks a worker to run a mission.
type RunRequested struct {
	BaseEvent

	Source         models.RunSource  `json:"source"`
	RunKey         string            `json:"run_key,omitempty"`
	TriggerPayload map[string]any    `json:"trigger_payload,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	Scope          models.Scope      `json:"scope"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunStarted struct {
	BaseEvent

	RunKey  string           `json:"run_key"`
	Source  models.RunSource `json:"source"`
	Attempt int              `json:"attempt"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

// NodeCompleted reports the outcome of one executed node.
type NodeCompleted struct {
	BaseEvent

	NodeID     string          `json:"node_id"`
	NodeType   models.NodeType `json:"node_type"`
	OK         bool            `json:"ok"`
	Port       string          `json:"port,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type RunFinished struct {
	BaseEvent

	RunKey        string           `json:"run_key"`
	Status        models.RunStatus `json:"status"`
	DurationMs    int64            `json:"duration_ms"`
	NodesExecuted int              `json:"nodes_executed"`
	Output        string           `json:"output,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

func NewBaseEvent(eventType EventType, missionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		MissionID: missionID,
		Metadata:  make(map[string]any),
	}
}

// New returns an empty event value for eventType, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case RunRequestedEvent:
		return &RunRequested{}, true
	case RunStartedEvent:
		return &RunStarted{}, true
	case NodeCompletedEvent:
		return &NodeCompleted{}, true
	case RunFinishedEvent:
		return &RunFinished{}, true
	default:
		return nil, false
	}
}
