// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
)

// Mission returns a small valid mission with the given id.
func Mission(id string) *models.Mission {
	return &models.Mission{
		ID:      id,
		Label:   "Mission " + id,
		Enabled: true,
		Nodes: []models.Node{
			&models.ManualTriggerNode{NodeBase: models.NodeBase{ID: "t", Type: models.NodeTypeManualTrigger}},
			&models.SplitNode{NodeBase: models.NodeBase{ID: "s", Type: models.NodeTypeSplit}},
		},
		Connections: []*models.Connection{{ID: "c1", Source: "t", Target: "s"}},
		Settings:    models.MissionSettings{Timezone: "UTC"},
	}
}

// Run returns a finished run record of missionID started at startedAt.
func Run(id, missionID string, startedAt time.Time) *models.RunRecord {
	finished := startedAt.Add(time.Second)

	return &models.RunRecord{
		ID:         id,
		MissionID:  missionID,
		RunKey:     missionID + ":" + startedAt.UTC().Format("200601021504"),
		Source:     models.RunSourceSchedule,
		Status:     models.RunStatusCompleted,
		Attempt:    1,
		StartedAt:  startedAt.UTC(),
		FinishedAt: &finished,
		Output:     "done",
		NodeRuns: []models.NodeRun{
			{NodeID: "t", NodeType: models.NodeTypeManualTrigger, OK: true, DurationMs: 1},
		},
	}
}

// RunSuite exercises a backend through the persistence.Persistence contract.
func RunSuite(t *testing.T, newPersistence func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("mission lifecycle", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()

		require.NoError(t, p.SaveMission(ctx, Mission("m-b")))
		require.NoError(t, p.SaveMission(ctx, Mission("m-a")))

		missions, err := p.Missions(ctx)
		require.NoError(t, err)
		require.Len(t, missions, 2)
		assert.Equal(t, "m-a", missions[0].ID)

		loaded, err := p.MissionByID(ctx, "m-a")
		require.NoError(t, err)
		assert.Equal(t, "Mission m-a", loaded.Label)
		require.Len(t, loaded.Nodes, 2)
		assert.IsType(t, &models.SplitNode{}, loaded.Nodes[1])
		assert.Equal(t, "UTC", loaded.Settings.Timezone)

		updated := Mission("m-a")
		updated.Label = "Renamed"
		updated.Enabled = false
		require.NoError(t, p.SaveMission(ctx, updated))

		loaded, err = p.MissionByID(ctx, "m-a")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loaded.Label)
		assert.False(t, loaded.Enabled)

		require.NoError(t, p.DeleteMission(ctx, "m-a"))

		_, err = p.MissionByID(ctx, "m-a")
		assert.ErrorIs(t, err, persistence.ErrMissionNotFound)
		assert.ErrorIs(t, p.DeleteMission(ctx, "m-a"), persistence.ErrMissionNotFound)
	})

	t.Run("run history", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()
		base := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

		require.NoError(t, p.SaveMission(ctx, Mission("m-1")))

		_, err := p.LastRun(ctx, "m-1")
		require.ErrorIs(t, err, persistence.ErrRunNotFound)

		for i, id := range []string{"r-1", "r-2", "r-3"} {
			require.NoError(t, p.SaveRun(ctx, Run(id, "m-1", base.Add(time.Duration(i)*time.Hour))))
		}

		last, err := p.LastRun(ctx, "m-1")
		require.NoError(t, err)
		assert.Equal(t, "r-3", last.ID)
		assert.Equal(t, models.RunStatusCompleted, last.Status)
		require.Len(t, last.NodeRuns, 1)
		assert.Equal(t, "t", last.NodeRuns[0].NodeID)

		runs, err := p.Runs(ctx, "m-1", 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "r-3", runs[0].ID)
		assert.Equal(t, "r-2", runs[1].ID)

		byKey, err := p.RunByKey(ctx, "m-1:202603101400")
		require.NoError(t, err)
		assert.Equal(t, "r-2", byKey.ID)

		_, err = p.RunByKey(ctx, "m-1:209901010000")
		assert.ErrorIs(t, err, persistence.ErrRunNotFound)
	})

	t.Run("saving a run twice updates it", func(t *testing.T) {
		p := newPersistence(t)
		ctx := context.Background()
		run := Run("r-1", "m-1", time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))

		require.NoError(t, p.SaveMission(ctx, Mission("m-1")))
		run.Status = models.RunStatusRunning
		require.NoError(t, p.SaveRun(ctx, run))

		run.Status = models.RunStatusCompletedWithErrors
		require.NoError(t, p.SaveRun(ctx, run))

		runs, err := p.Runs(ctx, "m-1", 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, models.RunStatusCompletedWithErrors, runs[0].Status)
	})

	t.Run("health check", func(t *testing.T) {
		p := newPersistence(t)

		assert.NoError(t, p.HealthCheck(context.Background()))
	})
}
