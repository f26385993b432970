package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
)

// Store implements persistence.Persistence over the missions and runs tables.
// Both tables keep the full record as a JSON document next to the columns
// used for lookups, so reads never depend on driver time handling.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Missions(ctx context.Context) ([]*models.Mission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM missions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}

	defer s.closeRows(ctx, rows)

	missions := make([]*models.Mission, 0)

	for rows.Next() {
		mission, err := scanDocument[models.Mission](rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}

		missions = append(missions, mission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missions: %w", err)
	}

	return missions, nil
}

func (s *Store) MissionByID(ctx context.Context, id string) (*models.Mission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT document FROM missions WHERE id = $1`, id)

	mission, err := scanDocument[models.Mission](row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewMissionError("MissionByID", id, persistence.ErrMissionNotFound)
	}

	if err != nil {
		return nil, persistence.NewMissionError("MissionByID", id, err)
	}

	return mission, nil
}

func (s *Store) SaveMission(ctx context.Context, mission *models.Mission) error {
	if mission.ID == "" {
		return persistence.NewMissionError("SaveMission", "", persistence.ErrInvalidMission)
	}

	mission.UpdatedAt = time.Now().UTC()

	document, err := json.Marshal(mission)
	if err != nil {
		return persistence.NewMissionError("SaveMission", mission.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO missions (id, label, enabled, document, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label
		  , enabled = excluded.enabled
		  , document = excluded.document
		  , updated_at = excluded.updated_at
	`, mission.ID, mission.Label, mission.Enabled, string(document), mission.UpdatedAt)
	if err != nil {
		return persistence.NewMissionError("SaveMission", mission.ID, err)
	}

	return nil
}

// DeleteMission removes the mission and its run history.
func (s *Store) DeleteMission(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewMissionError("DeleteMission", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM missions WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewMissionError("DeleteMission", id, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		_ = tx.Rollback()

		return persistence.NewMissionError("DeleteMission", id, persistence.ErrMissionNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE mission_id = $1`, id); err != nil {
		_ = tx.Rollback()

		return persistence.NewMissionError("DeleteMission", id, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewMissionError("DeleteMission", id, err)
	}

	return nil
}

func (s *Store) SaveRun(ctx context.Context, run *models.RunRecord) error {
	document, err := json.Marshal(run)
	if err != nil {
		return persistence.NewMissionError("SaveRun", run.MissionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mission_id, run_key, status, attempt, started_at, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status
		  , document = excluded.document
	`, run.ID, run.MissionID, run.RunKey, string(run.Status), run.Attempt, run.StartedAt.UTC(), string(document))
	if err != nil {
		return persistence.NewMissionError("SaveRun", run.MissionID, err)
	}

	return nil
}

func (s *Store) LastRun(ctx context.Context, missionID string) (*models.RunRecord, error) {
	runs, err := s.Runs(ctx, missionID, 1)
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, persistence.NewMissionError("LastRun", missionID, persistence.ErrRunNotFound)
	}

	return runs[0], nil
}

func (s *Store) RunByKey(ctx context.Context, runKey string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document FROM runs
		WHERE run_key = $1
		ORDER BY attempt DESC, started_at DESC
		LIMIT 1
	`, runKey)

	run, err := scanDocument[models.RunRecord](row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewMissionError("RunByKey", "", persistence.ErrRunNotFound)
	}

	if err != nil {
		return nil, persistence.NewMissionError("RunByKey", "", err)
	}

	return run, nil
}

func (s *Store) Runs(ctx context.Context, missionID string, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = persistence.DefaultRunsLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document FROM runs
		WHERE mission_id = $1
		ORDER BY started_at DESC, attempt DESC
		LIMIT $2
	`, missionID, limit)
	if err != nil {
		return nil, persistence.NewMissionError("Runs", missionID, err)
	}

	defer s.closeRows(ctx, rows)

	runs := make([]*models.RunRecord, 0, limit)

	for rows.Next() {
		run, err := scanDocument[models.RunRecord](rows)
		if err != nil {
			return nil, persistence.NewMissionError("Runs", missionID, err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewMissionError("Runs", missionID, err)
	}

	return runs, nil
}

func (s *Store) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument[T any](row scanner) (*T, error) {
	var document []byte
	if err := row.Scan(&document); err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(document, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return &value, nil
}
