package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nova-hud/nova/pkg/mocks"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/testutil"
	"github.com/nova-hud/nova/pkg/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticMissions struct {
	missions []*models.Mission
	err      error
}

func (s staticMissions) FetchEnabled(context.Context) ([]*models.Mission, error) {
	return s.missions, s.err
}

type recordingRunner struct {
	mu       sync.Mutex
	triggers []workflow.Trigger
	active   atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	fail     map[string]error
}

func (r *recordingRunner) Execute(ctx context.Context, trigger workflow.Trigger) (*workflow.Result, error) {
	current := r.active.Add(1)
	defer r.active.Add(-1)

	for {
		peak := r.peak.Load()
		if current <= peak || r.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()

	if err := r.fail[trigger.MissionID]; err != nil {
		return nil, err
	}

	return &workflow.Result{Record: &models.RunRecord{ID: "run-" + trigger.MissionID, Status: models.RunStatusCompleted}}, nil
}

func (r *recordingRunner) missionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.triggers))
	for _, trigger := range r.triggers {
		ids = append(ids, trigger.MissionID)
	}

	sort.Strings(ids)

	return ids
}

func daily(id string) *models.Mission {
	return testutil.CreateTestMission(
		testutil.WithMissionID(id),
		testutil.WithNodes(testutil.DailyTrigger("t", "09:00"), testutil.Split("s")),
		testutil.WithChain("t", "s"),
	)
}

func manual(id string) *models.Mission {
	return testutil.CreateTestMission(
		testutil.WithMissionID(id),
		testutil.WithNodes(testutil.ManualTrigger("t")),
	)
}

func TestTick_RunsScheduledMissionsOnly(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	runner := &recordingRunner{}
	missions := staticMissions{missions: []*models.Mission{daily("a"), manual("b"), daily("c")}}

	s := New(missions, runner, slog.Default(), WithClock(func() time.Time { return now }))
	require.NoError(t, s.Tick(context.Background()))
	s.Wait()

	assert.Equal(t, []string{"a", "c"}, runner.missionIDs())

	for _, trigger := range runner.triggers {
		assert.Equal(t, models.RunSourceSchedule, trigger.Source)
		assert.Equal(t, now, trigger.Now)
	}
}

func TestTick_BoundsConcurrency(t *testing.T) {
	runner := &recordingRunner{delay: 20 * time.Millisecond}
	missions := staticMissions{missions: []*models.Mission{daily("a"), daily("b"), daily("c"), daily("d"), daily("e")}}

	s := New(missions, runner, slog.Default(), WithConcurrency(2))
	require.NoError(t, s.Tick(context.Background()))
	s.Wait()

	assert.Len(t, runner.missionIDs(), 5)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestTick_FailingMissionDoesNotStopOthers(t *testing.T) {
	runner := &recordingRunner{fail: map[string]error{
		"a": errors.New("store offline"),
		"b": workflow.ErrDuplicateRun,
	}}
	missions := staticMissions{missions: []*models.Mission{daily("a"), daily("b"), daily("c")}}

	s := New(missions, runner, slog.Default())
	require.NoError(t, s.Tick(context.Background()))
	s.Wait()

	assert.Equal(t, []string{"a", "b", "c"}, runner.missionIDs())
}

func TestTick_SourceError(t *testing.T) {
	s := New(staticMissions{err: errors.New("boom")}, &recordingRunner{}, slog.Default())

	assert.EqualError(t, s.Tick(context.Background()), "boom")
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &recordingRunner{}
	missions := staticMissions{missions: []*models.Mission{daily("a")}}

	s := New(missions, runner, slog.Default(), WithSpec("@every 1s"))
	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return len(runner.missionIDs()) > 0
	}, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(staticMissions{}, &recordingRunner{}, slog.Default(), WithSpec("not a spec"))

	require.Error(t, s.Start(context.Background()))
}

func TestTick_RequestsRunsOnTheBus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "a", mock.Anything).Return(nil).Once()

	s := New(staticMissions{missions: []*models.Mission{daily("a"), manual("b")}}, workflow.NewRequester(bus), slog.Default(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, s.Tick(context.Background()))
	s.Wait()

	bus.AssertExpectations(t)
}

// gatedRunner holds runs of the missions in gated until release is closed.
type gatedRunner struct {
	gated   map[string]bool
	release chan struct{}

	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error
}

func newGatedRunner(gated ...string) *gatedRunner {
	r := &gatedRunner{
		gated:   make(map[string]bool),
		release: make(chan struct{}),
		calls:   make(map[string]int),
		errs:    make(map[string]error),
	}

	for _, id := range gated {
		r.gated[id] = true
	}

	return r
}

func (r *gatedRunner) Execute(ctx context.Context, trigger workflow.Trigger) (*workflow.Result, error) {
	r.mu.Lock()
	r.calls[trigger.MissionID]++
	r.mu.Unlock()

	var err error

	if r.gated[trigger.MissionID] {
		select {
		case <-r.release:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	r.mu.Lock()
	r.errs[trigger.MissionID] = err
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return &workflow.Result{Record: &models.RunRecord{ID: "run-" + trigger.MissionID, Status: models.RunStatusCompleted}}, nil
}

func (r *gatedRunner) callCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[id]
}

func (r *gatedRunner) errFor(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.errs[id]
}

func idle(s *Scheduler, id string) func() bool {
	return func() bool {
		s.flightMu.Lock()
		defer s.flightMu.Unlock()

		_, busy := s.inFlight[id]

		return !busy
	}
}

func TestTick_SlowMissionDoesNotHoldBackOthers(t *testing.T) {
	runner := newGatedRunner("slow")
	missions := staticMissions{missions: []*models.Mission{daily("slow"), daily("fast")}}

	s := New(missions, runner, slog.Default(), WithConcurrency(2))

	started := time.Now()
	require.NoError(t, s.Tick(context.Background()))
	assert.Less(t, time.Since(started), time.Second, "tick waited for its runs")

	assert.Eventually(t, idle(s, "fast"), time.Second, 5*time.Millisecond)

	require.NoError(t, s.Tick(context.Background()))
	assert.Eventually(t, func() bool { return runner.callCount("fast") == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, runner.callCount("slow"), "slow mission started twice while still running")

	close(runner.release)
	s.Wait()

	assert.Eventually(t, idle(s, "slow"), time.Second, 5*time.Millisecond)
}

func TestTick_BusySlotsQueueInsteadOfDropping(t *testing.T) {
	runner := newGatedRunner("a")
	missions := staticMissions{missions: []*models.Mission{daily("a"), daily("b")}}

	s := New(missions, runner, slog.Default(), WithConcurrency(1))
	require.NoError(t, s.Tick(context.Background()))

	assert.Eventually(t, func() bool { return runner.callCount("a")+runner.callCount("b") == 1 }, time.Second, 5*time.Millisecond)

	if runner.callCount("b") == 1 {
		// b took the only slot first and has already finished.
		assert.Eventually(t, func() bool { return runner.callCount("a") == 1 }, time.Second, 5*time.Millisecond)
	} else {
		assert.Never(t, func() bool { return runner.callCount("b") > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	}

	close(runner.release)
	s.Wait()

	assert.Equal(t, 1, runner.callCount("a"))
	assert.Equal(t, 1, runner.callCount("b"))
}

func TestTick_RunTimeoutBoundsEachRun(t *testing.T) {
	runner := newGatedRunner("stuck")
	missions := staticMissions{missions: []*models.Mission{daily("stuck")}}

	s := New(missions, runner, slog.Default(), WithRunTimeout(30*time.Millisecond))

	started := time.Now()
	require.NoError(t, s.Tick(context.Background()))
	s.Wait()

	assert.Less(t, time.Since(started), time.Second)
	assert.ErrorIs(t, runner.errFor("stuck"), context.DeadlineExceeded)
}

func TestScheduler_StopCancelsInFlightRuns(t *testing.T) {
	runner := newGatedRunner("slow")
	missions := staticMissions{missions: []*models.Mission{daily("slow")}}

	s := New(missions, runner, slog.Default(), WithSpec("@every 1s"))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runner.callCount("slow") == 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, runner.errFor("slow"), context.Canceled)
}
