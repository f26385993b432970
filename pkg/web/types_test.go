package web

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/testutil"
)

func TestTransformMissionSummary(t *testing.T) {
	mission := testutil.CreateTestMission(
		testutil.WithMissionID("m-1"),
		testutil.WithLabel("Morning brief"),
		testutil.WithNodes(
			testutil.DailyTrigger("daily", "08:00"),
			testutil.WebhookTrigger("hook", "brief", ""),
			testutil.Code("work", `return 1;`),
		),
	)

	summary := TransformMissionSummary(mission)

	assert.Equal(t, "m-1", summary.ID)
	assert.Equal(t, "Morning brief", summary.Label)
	assert.True(t, summary.Enabled)
	assert.Equal(t, 3, summary.NodeCount)
	assert.Equal(t, []string{string(models.NodeTypeScheduleTrigger), string(models.NodeTypeWebhookTrigger)}, summary.Triggers)
}

func TestTransformMissionSummary_NoTriggers(t *testing.T) {
	summary := TransformMissionSummary(testutil.CreateTestMission())

	assert.NotNil(t, summary.Triggers)
	assert.Empty(t, summary.Triggers)
	assert.Zero(t, summary.NodeCount)
}

func TestRunResponse(t *testing.T) {
	record := testutil.CreateTestRun("m-1")
	record.Output = "brief"

	response := runResponse(record)

	assert.Equal(t, record.ID, response.RunID)
	assert.Equal(t, record.Status, response.Status)
	assert.Equal(t, "brief", response.Output)
	assert.Same(t, record, response.Record)
	assert.False(t, response.Queued)
}
