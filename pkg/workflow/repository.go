package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
)

// lastRunScan bounds how far back LastRunAt looks for a run that got past its gate.
const lastRunScan = 50

type Repository struct {
	persistence persistence.Persistence
}

func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Mission, error) {
	missions, err := r.persistence.Missions(ctx)
	if err != nil {
		return make([]*models.Mission, 0), err
	}

	return missions, nil
}

// FetchEnabled returns only enabled missions.
func (r *Repository) FetchEnabled(ctx context.Context) ([]*models.Mission, error) {
	missions, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.Mission, 0, len(missions))

	for _, mission := range missions {
		if mission.Enabled {
			enabled = append(enabled, mission)
		}
	}

	return enabled, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Mission, error) {
	return r.persistence.MissionByID(ctx, id)
}

func (r *Repository) Save(ctx context.Context, mission *models.Mission) error {
	return r.persistence.SaveMission(ctx, mission)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.persistence.DeleteMission(ctx, id)
}

func (r *Repository) RecordRun(ctx context.Context, run *models.RunRecord) error {
	return r.persistence.SaveRun(ctx, run)
}

func (r *Repository) Runs(ctx context.Context, missionID string, limit int) ([]*models.RunRecord, error) {
	return r.persistence.Runs(ctx, missionID, limit)
}

// Seen reports whether a run was already recorded under runKey.
func (r *Repository) Seen(ctx context.Context, runKey string) (bool, error) {
	_, err := r.persistence.RunByKey(ctx, runKey)
	if errors.Is(err, persistence.ErrRunNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// LastRunAt returns the start time of the latest run that got past its
// trigger gate, or nil when the mission never fired.
func (r *Repository) LastRunAt(ctx context.Context, missionID string) (*time.Time, error) {
	runs, err := r.persistence.Runs(ctx, missionID, lastRunScan)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			return nil, nil
		}

		return nil, err
	}

	for _, run := range runs {
		if run.Triggered() {
			startedAt := run.StartedAt

			return &startedAt, nil
		}
	}

	return nil, nil
}
