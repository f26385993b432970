// Package file provides file-based persistence for missions and run records.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Missions live under missions/<id>.json and runs under runs/<missionId>/<runId>.json.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks that the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return fmt.Errorf("file persistence root %s: %w", fp.root, err)
	}

	return nil
}

func (fp *Persistence) Missions(ctx context.Context) ([]*models.Mission, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(fp.root), "missions/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list mission files: %w", err)
	}

	missions := make([]*models.Mission, 0, len(files))

	for _, file := range files {
		mission, err := readJSON[models.Mission](filepath.Join(fp.root, file))
		if err != nil {
			return nil, fmt.Errorf("failed to load mission %s: %w", file, err)
		}

		missions = append(missions, mission)
	}

	slices.SortFunc(missions, func(a, b *models.Mission) int {
		return strings.Compare(a.ID, b.ID)
	})

	return missions, nil
}

func (fp *Persistence) MissionByID(_ context.Context, id string) (*models.Mission, error) {
	if err := checkID(id); err != nil {
		return nil, persistence.NewMissionError("MissionByID", id, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	mission, err := readJSON[models.Mission](fp.missionPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewMissionError("MissionByID", id, persistence.ErrMissionNotFound)
	}

	if err != nil {
		return nil, persistence.NewMissionError("MissionByID", id, err)
	}

	return mission, nil
}

func (fp *Persistence) SaveMission(_ context.Context, mission *models.Mission) error {
	if err := checkID(mission.ID); err != nil {
		return persistence.NewMissionError("SaveMission", mission.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	mission.UpdatedAt = time.Now().UTC()

	if err := writeJSON(fp.missionPath(mission.ID), mission); err != nil {
		return persistence.NewMissionError("SaveMission", mission.ID, err)
	}

	return nil
}

// DeleteMission removes the mission and its run history.
func (fp *Persistence) DeleteMission(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return persistence.NewMissionError("DeleteMission", id, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.missionPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewMissionError("DeleteMission", id, persistence.ErrMissionNotFound)
	}

	if err != nil {
		return persistence.NewMissionError("DeleteMission", id, err)
	}

	if err := os.RemoveAll(filepath.Join(fp.root, "runs", id)); err != nil {
		return persistence.NewMissionError("DeleteMission", id, err)
	}

	return nil
}

func (fp *Persistence) SaveRun(_ context.Context, run *models.RunRecord) error {
	if err := checkID(run.MissionID); err != nil {
		return persistence.NewMissionError("SaveRun", run.MissionID, err)
	}

	if err := checkID(run.ID); err != nil {
		return persistence.NewMissionError("SaveRun", run.MissionID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	path := filepath.Join(fp.root, "runs", run.MissionID, run.ID+".json")
	if err := writeJSON(path, run); err != nil {
		return persistence.NewMissionError("SaveRun", run.MissionID, err)
	}

	return nil
}

func (fp *Persistence) LastRun(ctx context.Context, missionID string) (*models.RunRecord, error) {
	runs, err := fp.Runs(ctx, missionID, 1)
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, persistence.NewMissionError("LastRun", missionID, persistence.ErrRunNotFound)
	}

	return runs[0], nil
}

func (fp *Persistence) RunByKey(_ context.Context, runKey string) (*models.RunRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	runs, err := fp.loadRuns("runs/*/*.json")
	if err != nil {
		return nil, err
	}

	for _, run := range runs {
		if run.RunKey == runKey {
			return run, nil
		}
	}

	return nil, persistence.NewMissionError("RunByKey", "", persistence.ErrRunNotFound)
}

func (fp *Persistence) Runs(_ context.Context, missionID string, limit int) ([]*models.RunRecord, error) {
	if err := checkID(missionID); err != nil {
		return nil, persistence.NewMissionError("Runs", missionID, err)
	}

	if limit <= 0 {
		limit = persistence.DefaultRunsLimit
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	runs, err := fp.loadRuns("runs/" + missionID + "/*.json")
	if err != nil {
		return nil, persistence.NewMissionError("Runs", missionID, err)
	}

	if len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// loadRuns reads every run file matching pattern, newest first.
func (fp *Persistence) loadRuns(pattern string) ([]*models.RunRecord, error) {
	files, err := fs.Glob(os.DirFS(fp.root), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.RunRecord, 0, len(files))

	for _, file := range files {
		run, err := readJSON[models.RunRecord](filepath.Join(fp.root, file))
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", file, err)
		}

		runs = append(runs, run)
	}

	slices.SortStableFunc(runs, func(a, b *models.RunRecord) int {
		if byTime := b.StartedAt.Compare(a.StartedAt); byTime != 0 {
			return byTime
		}

		return b.Attempt - a.Attempt
	})

	return runs, nil
}

func (fp *Persistence) missionPath(id string) string {
	return filepath.Join(fp.root, "missions", id+".json")
}

// checkID refuses identifiers that would escape their directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\*?[`) {
		return fmt.Errorf("%w: unusable identifier %q", persistence.ErrInvalidMission, id)
	}

	return nil
}

func readJSON[T any](path string) (*T, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &value, nil
}

// writeJSON replaces path atomically through a temporary file in the same directory.
func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close temp file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}
