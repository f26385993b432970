// Package persistence provides the storage abstraction for missions and their run history.
package persistence

import (
	"context"

	"github.com/nova-hud/nova/pkg/models"
)

// DefaultRunsLimit bounds Runs when the caller passes a non-positive limit.
const DefaultRunsLimit = 20

type Persistence interface {
	Missions(ctx context.Context) ([]*models.Mission, error)
	MissionByID(ctx context.Context, id string) (*models.Mission, error)
	SaveMission(ctx context.Context, mission *models.Mission) error
	DeleteMission(ctx context.Context, id string) error

	SaveRun(ctx context.Context, run *models.RunRecord) error
	// LastRun returns the most recent run of a mission, or ErrRunNotFound.
	LastRun(ctx context.Context, missionID string) (*models.RunRecord, error)
	// RunByKey returns the latest attempt recorded under runKey, or ErrRunNotFound.
	RunByKey(ctx context.Context, runKey string) (*models.RunRecord, error)
	// Runs returns the newest runs of a mission first.
	Runs(ctx context.Context, missionID string, limit int) ([]*models.RunRecord, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
