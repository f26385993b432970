package dispatch

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nova-hud/nova/pkg/protocol"
)

// DefaultInboxSize bounds the messages kept per recipient.
const DefaultInboxSize = 100

// InboxMessage is one in-app chat message.
type InboxMessage struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	MissionID string    `json:"missionId,omitempty"`
	RunID     string    `json:"runId,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Inbox is the in-process novachat channel. Messages are kept newest last,
// at most size per recipient.
type Inbox struct {
	mu       sync.RWMutex
	size     int
	messages map[string][]InboxMessage
	now      func() time.Time
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}

	return &Inbox{size: size, messages: map[string][]InboxMessage{}, now: time.Now}
}

func (i *Inbox) Send(_ context.Context, recipient string, msg Message) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	list := append(i.messages[recipient], InboxMessage{
		ID:        uuid.NewString(),
		Recipient: recipient,
		MissionID: msg.MissionID,
		RunID:     msg.RunID,
		Text:      msg.Text,
		CreatedAt: i.now().UTC(),
	})

	if len(list) > i.size {
		list = slices.Clone(list[len(list)-i.size:])
	}

	i.messages[recipient] = list

	return 0, nil
}

// DefaultRecipient addresses the run owner, or the mission when the run has
// no owner.
func (i *Inbox) DefaultRecipient(req protocol.DispatchRequest) string {
	if req.Scope.UserID != "" {
		return req.Scope.UserID
	}

	if id, ok := req.Meta["missionId"].(string); ok && id != "" {
		return id
	}

	return req.Schedule.ID
}

// Messages returns a copy of the recipient's messages, oldest first.
func (i *Inbox) Messages(recipient string) []InboxMessage {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return slices.Clone(i.messages[recipient])
}
