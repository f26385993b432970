package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/events"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
)

var (
	// ErrMissionDisabled is returned when a scheduled run targets a disabled mission.
	ErrMissionDisabled = errors.New("mission is disabled")
	// ErrDuplicateRun is returned when a run key was already recorded.
	ErrDuplicateRun = errors.New("run already recorded")
)

// Trigger asks the manager to run a stored mission.
type Trigger struct {
	MissionID string
	Source    models.RunSource
	RunID     string
	RunKey    string
	Now       time.Time
	Scope     models.Scope
	Payload   map[string]any
	Variables map[string]string
}

// Manager loads missions, runs them through the executor and records the
// outcome. It serves direct calls as well as run requests from the event bus.
type Manager struct {
	workerID   string
	repository *Repository
	executor   *Executor
	runTimeout time.Duration
	logger     *slog.Logger
}

type ManagerOption func(*Manager)

// WithRunTimeout bounds the execution of every run. The outcome of a run
// that hits the deadline is still recorded. Zero leaves runs unbounded.
func WithRunTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.runTimeout = d
		}
	}
}

func NewManager(workerID string, repository *Repository, executor *Executor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		workerID:   workerID,
		repository: repository,
		executor:   executor,
		logger:     logger.With("module", "workflow_manager", "worker_id", workerID),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Execute runs the mission named by trigger. Scheduled runs are keyed per
// mission and minute and are not recorded when their trigger declined.
func (m *Manager) Execute(ctx context.Context, trigger Trigger) (*Result, error) {
	mission, err := m.repository.FetchByID(ctx, trigger.MissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mission %s: %w", trigger.MissionID, err)
	}

	if trigger.Now.IsZero() {
		trigger.Now = time.Now()
	}

	scheduled := trigger.Source == models.RunSourceSchedule

	if scheduled && !mission.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrMissionDisabled, mission.ID)
	}

	if scheduled && trigger.RunKey == "" {
		trigger.RunKey = RunKey(mission.ID, trigger.Source, trigger.RunID, trigger.Now)
	}

	if trigger.RunKey != "" {
		seen, err := m.repository.Seen(ctx, trigger.RunKey)
		if err != nil {
			return nil, fmt.Errorf("failed to look up run %s: %w", trigger.RunKey, err)
		}

		if seen {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRun, trigger.RunKey)
		}
	}

	lastRunAt, err := m.repository.LastRunAt(ctx, mission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last run of %s: %w", mission.ID, err)
	}

	runCtx, cancel := m.runContext(ctx)

	result, runErr := m.executor.Run(runCtx, Request{
		Mission:        mission,
		Source:         trigger.Source,
		RunID:          trigger.RunID,
		RunKey:         trigger.RunKey,
		LastRunAt:      lastRunAt,
		Now:            trigger.Now,
		Scope:          trigger.Scope,
		TriggerPayload: trigger.Payload,
		Variables:      trigger.Variables,
	})

	cancel()

	if result == nil {
		return nil, runErr
	}

	if scheduled && result.Record.Status == models.RunStatusSkipped {
		return result, runErr
	}

	if err := m.repository.RecordRun(ctx, result.Record); err != nil {
		m.logger.ErrorContext(ctx, "Failed to record run",
			"mission_id", mission.ID,
			"run_id", result.Record.ID,
			"error", err,
		)

		return result, errors.Join(runErr, fmt.Errorf("failed to record run: %w", err))
	}

	return result, runErr
}

func (m *Manager) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.runTimeout > 0 {
		return context.WithTimeout(ctx, m.runTimeout)
	}

	return context.WithCancel(ctx)
}

// Start registers the run request handler and subscribes to the bus.
func (m *Manager) Start(ctx context.Context, bus eventbus.EventSubscriber) error {
	m.logger.InfoContext(ctx, "Starting workflow manager")

	if err := bus.Handle(events.RunRequestedEvent, m.handleRunRequested); err != nil {
		return err
	}

	if err := bus.Subscribe(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	m.logger.InfoContext(ctx, "Workflow manager started")

	return nil
}

func (m *Manager) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for RunRequested")

		return nil
	}

	logger := m.logger.With(
		"mission_id", requested.MissionID,
		"run_source", requested.Source,
		"event_id", requested.ID,
	)
	logger.InfoContext(ctx, "Processing run requested event")

	_, err := m.Execute(ctx, Trigger{
		MissionID: requested.MissionID,
		Source:    requested.Source,
		RunID:     requested.RunID,
		RunKey:    requested.RunKey,
		Now:       requested.Timestamp,
		Scope:     requested.Scope,
		Payload:   requested.TriggerPayload,
		Variables: requested.Variables,
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateRun), errors.Is(err, ErrMissionDisabled), persistence.IsMissionNotFound(err):
		logger.InfoContext(ctx, "Dropping run request", "reason", err)

		return nil
	case errors.Is(err, models.ErrInvalidMission), errors.Is(err, models.ErrCyclicGraph):
		logger.WarnContext(ctx, "Mission cannot run", "error", err)

		return nil
	default:
		logger.ErrorContext(ctx, "Failed to execute mission", "error", err)

		return err
	}
}
