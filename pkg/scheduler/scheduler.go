// Package scheduler evaluates every enabled mission once a minute with run
// source "schedule". The schedule trigger inside each mission decides whether
// the run goes ahead.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/workflow"
)

const (
	// DefaultSpec is how often missions are evaluated.
	DefaultSpec = "@every 1m"
	// DefaultConcurrency bounds the missions evaluated at the same time.
	DefaultConcurrency = 4
)

// MissionSource lists the missions to evaluate.
type MissionSource interface {
	FetchEnabled(ctx context.Context) ([]*models.Mission, error)
}

// Runner executes one mission run.
type Runner interface {
	Execute(ctx context.Context, trigger workflow.Trigger) (*workflow.Result, error)
}

type Scheduler struct {
	missions    MissionSource
	runner      Runner
	spec        string
	concurrency int
	runTimeout  time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	slots    *semaphore.Weighted
	running  sync.WaitGroup
	flightMu sync.Mutex
	inFlight map[string]struct{}
}

type Option func(*Scheduler)

// WithConcurrency bounds how many missions run at once. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRunTimeout bounds every scheduled run. Zero leaves runs unbounded.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.runTimeout = d
		}
	}
}

// WithSpec overrides the cron spec of the evaluation tick.
func WithSpec(spec string) Option {
	return func(s *Scheduler) { s.spec = spec }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(missions MissionSource, runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		missions:    missions,
		runner:      runner,
		spec:        DefaultSpec,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logger.With("module", "scheduler"),
		inFlight:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.slots = semaphore.NewWeighted(int64(s.concurrency))

	return s
}

// Start registers the tick and starts the cron loop. It returns once the
// loop is running; Stop ends it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	s.logger.InfoContext(ctx, "Starting scheduler", "spec", s.spec, "concurrency", s.concurrency, "run_timeout", s.runTimeout)

	s.ctx, s.cancel = context.WithCancel(ctx)

	logger := cronLogger{logger: s.logger}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	entryID, err := c.AddFunc(s.spec, func() {
		if err := s.Tick(s.ctx); err != nil {
			s.logger.ErrorContext(s.ctx, "Scheduler tick failed", "error", err)
		}
	})
	if err != nil {
		s.cancel()

		return err
	}

	c.Start()
	s.cron = c

	s.logger.InfoContext(ctx, "Scheduler started", "entry_id", entryID)

	return nil
}

// Stop ends the cron loop, cancels in-flight runs and waits for them to
// return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping scheduler")
	s.cancel()

	done := make(chan struct{})

	go func() {
		<-c.Stop().Done()
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.InfoContext(ctx, "Stopped scheduler")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every run started by Tick has returned.
func (s *Scheduler) Wait() {
	s.running.Wait()
}

// Tick evaluates every enabled mission that has a schedule trigger. Runs
// start in the background and Tick returns without waiting for them. A
// mission whose previous run is still going is skipped, and at most
// concurrency runs execute at once; a slow mission never holds back the
// others.
func (s *Scheduler) Tick(ctx context.Context) error {
	missions, err := s.missions.FetchEnabled(ctx)
	if err != nil {
		return err
	}

	now := s.now()

	for _, mission := range missions {
		if !scheduled(mission) {
			continue
		}

		if !s.claim(mission.ID) {
			s.logger.DebugContext(ctx, "Previous run still in progress", "mission_id", mission.ID)

			continue
		}

		s.running.Add(1)

		go func() {
			defer s.running.Done()
			defer s.release(mission.ID)

			if err := s.slots.Acquire(ctx, 1); err != nil {
				return
			}
			defer s.slots.Release(1)

			s.run(ctx, mission, now)
		}()
	}

	return nil
}

func (s *Scheduler) claim(missionID string) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	if _, busy := s.inFlight[missionID]; busy {
		return false
	}

	s.inFlight[missionID] = struct{}{}

	return true
}

func (s *Scheduler) release(missionID string) {
	s.flightMu.Lock()
	delete(s.inFlight, missionID)
	s.flightMu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, mission *models.Mission, now time.Time) {
	logger := s.logger.With("mission_id", mission.ID)

	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	result, err := s.runner.Execute(runCtx, workflow.Trigger{
		MissionID: mission.ID,
		Source:    models.RunSourceSchedule,
		Now:       now,
	})

	switch {
	case errors.Is(err, workflow.ErrDuplicateRun):
		logger.DebugContext(ctx, "Run already recorded for this minute")
	case errors.Is(err, context.DeadlineExceeded) && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.WarnContext(ctx, "Scheduled run timed out", "timeout", s.runTimeout)
	case err != nil:
		logger.WarnContext(ctx, "Scheduled run failed", "error", err)
	case result == nil:
		logger.DebugContext(ctx, "Scheduled run requested")
	case result.Record.Status != models.RunStatusSkipped:
		logger.InfoContext(ctx, "Scheduled run finished", "run_id", result.Record.ID, "status", result.Record.Status)
	}
}

func (s *Scheduler) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.runTimeout > 0 {
		return context.WithTimeout(ctx, s.runTimeout)
	}

	return context.WithCancel(ctx)
}

func scheduled(mission *models.Mission) bool {
	for _, node := range mission.Nodes {
		if node.Base().Type == models.NodeTypeScheduleTrigger {
			return true
		}
	}

	return false
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
