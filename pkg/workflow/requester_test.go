package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/events"
	"github.com/nova-hud/nova/pkg/mocks"
	"github.com/nova-hud/nova/pkg/models"
)

func TestRequester_PublishesRunRequest(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)

	var published events.RunRequested

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "m-1", mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).(events.RunRequested)
		}).
		Return(nil).Once()

	result, err := NewRequester(bus).Execute(context.Background(), Trigger{
		MissionID: "m-1",
		Source:    models.RunSourceSchedule,
		RunID:     "r-1",
		Now:       now,
		Variables: map[string]string{"city": "Lisbon"},
	})
	require.NoError(t, err)
	assert.Nil(t, result)

	bus.AssertExpectations(t)
	assert.Equal(t, events.RunRequestedEvent, published.Type)
	assert.Equal(t, "m-1", published.MissionID)
	assert.Equal(t, "r-1", published.RunID)
	assert.Equal(t, models.RunSourceSchedule, published.Source)
	assert.Equal(t, now, published.Timestamp)
	assert.Equal(t, "Lisbon", published.Variables["city"])
}

func TestRequestRun_PublishError(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "m-1", mock.MatchedBy(func(e eventbus.Event) bool {
		return e.GetType() == events.RunRequestedEvent
	})).Return(errors.New("broker down"))

	err := RequestRun(context.Background(), bus, Trigger{MissionID: "m-1", Source: models.RunSourceManual})
	require.EqualError(t, err, "broker down")
}
