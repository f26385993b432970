package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/events"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/mocks"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/protocol"
	"github.com/nova-hud/nova/pkg/registry"
	"github.com/nova-hud/nova/pkg/testutil"
)

const briefing = "Ethereum developers confirmed the Pectra upgrade date after the final testnet " +
	"fork went smoothly. Validators have three weeks to update their clients, and staking " +
	"providers say most of their fleet is already running the release candidate."

func newTestExecutor(t *testing.T, deps registry.Deps, opts ...Option) *Executor {
	t.Helper()

	reg := registry.NewRegistry(slog.Default(), metrics.New())
	reg.RegisterDefaultNodes(deps)

	return NewExecutor(reg, slog.Default(), opts...)
}

func nodeRun(t *testing.T, record *models.RunRecord, nodeID string) models.NodeRun {
	t.Helper()

	for _, run := range record.NodeRuns {
		if run.NodeID == nodeID {
			return run
		}
	}

	require.Failf(t, "node run not recorded", "node %s", nodeID)

	return models.NodeRun{}
}

func branchingMission(expression string) *models.Mission {
	return testutil.CreateTestMission(
		testutil.WithMissionID("m-branch"),
		testutil.WithNodes(
			testutil.ManualTrigger("t"),
			testutil.Condition("c", expression),
			testutil.Code("yes", `return "took the true branch";`),
			testutil.Code("no", `return "took the false branch";`),
		),
		testutil.WithEdge("t", "c"),
		testutil.WithEdge("c:true", "yes"),
		testutil.WithEdge("c:false", "no"),
	)
}

func TestExecutor_ConditionPrunesBranchNotTaken(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		ran        string
		skipped    string
	}{
		{name: "true", expression: "1 < 2", ran: "yes", skipped: "no"},
		{name: "false", expression: "1 > 2", ran: "no", skipped: "yes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{
				Mission: branchingMission(tc.expression),
			})
			require.NoError(t, err)

			record := result.Record
			assert.Equal(t, models.RunStatusCompleted, record.Status)
			assert.True(t, nodeRun(t, record, tc.ran).OK)
			assert.True(t, nodeRun(t, record, tc.skipped).Skipped)
			assert.Equal(t, "c", nodeRun(t, record, "c").NodeID)

			_, executed := result.Context.NodeOutput(tc.skipped)
			assert.False(t, executed)
		})
	}
}

func mergeMission(mode string) *models.Mission {
	return testutil.CreateTestMission(
		testutil.WithMissionID("m-merge"),
		testutil.WithNodes(
			testutil.ManualTrigger("t"),
			testutil.Condition("c", "true"),
			testutil.Code("a", `return "alpha";`),
			testutil.Code("b", `return "beta";`),
			testutil.Merge("m", mode),
		),
		testutil.WithEdge("t", "c"),
		testutil.WithEdge("c:true", "a"),
		testutil.WithEdge("c:false", "b"),
		testutil.WithEdge("a", "m"),
		testutil.WithEdge("b", "m"),
	)
}

func TestExecutor_MergeAllWaitsForEveryBranch(t *testing.T) {
	result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{Mission: mergeMission("all")})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Record.Status)
	assert.True(t, nodeRun(t, result.Record, "m").Skipped)
}

func TestExecutor_MergeAnyRunsOnOneBranch(t *testing.T) {
	result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{Mission: mergeMission("any")})
	require.NoError(t, err)

	merged := nodeRun(t, result.Record, "m")
	assert.False(t, merged.Skipped)
	assert.True(t, merged.OK)

	out, ok := result.Context.NodeOutput("m")
	require.True(t, ok)
	assert.Equal(t, "alpha", out.Text)
}

func TestExecutor_DeclinedTriggerSkipsRun(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "m-branch", mock.AnythingOfType("events.RunStarted")).Return(nil).Once()
	bus.On("Publish", mock.Anything, "m-branch", mock.AnythingOfType("events.NodeCompleted")).Return(nil).Once()
	bus.On("Publish", mock.Anything, "m-branch", mock.MatchedBy(func(e events.RunFinished) bool {
		return e.Status == models.RunStatusSkipped && e.NodesExecuted == 1
	})).Return(nil).Once()

	result, err := newTestExecutor(t, registry.Deps{}, WithPublisher(bus)).Run(context.Background(), Request{
		Mission: branchingMission("true"),
		Source:  models.RunSourceSchedule,
		Now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	record := result.Record
	assert.Equal(t, models.RunStatusSkipped, record.Status)
	assert.False(t, record.Triggered())
	assert.Equal(t, "m-branch:202603100900", record.RunKey)
	require.Len(t, record.NodeRuns, 4)

	for _, id := range []string{"c", "yes", "no"} {
		assert.True(t, nodeRun(t, record, id).Skipped, id)
	}

	bus.AssertExpectations(t)
}

func TestExecutor_FailedNodeContinuesRun(t *testing.T) {
	mission := testutil.CreateTestMission(
		testutil.WithMissionID("m-errors"),
		testutil.WithNodes(
			testutil.ManualTrigger("t"),
			testutil.Code("bad", `throw new Error("upstream down");`),
			testutil.Code("after", `return "still here";`),
			testutil.Code("recover", `return "handled";`),
			testutil.Code("happy", `return "not taken";`),
		),
		testutil.WithChain("t", "bad", "after"),
		testutil.WithEdge("bad:error", "recover"),
		testutil.WithEdge("bad:default", "happy"),
	)

	result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{Mission: mission})
	require.NoError(t, err)

	record := result.Record
	assert.Equal(t, models.RunStatusCompletedWithErrors, record.Status)

	bad := nodeRun(t, record, "bad")
	assert.False(t, bad.OK)
	assert.Contains(t, bad.Error, "upstream down")

	assert.True(t, nodeRun(t, record, "after").OK)
	assert.True(t, nodeRun(t, record, "recover").OK)
	assert.True(t, nodeRun(t, record, "happy").Skipped)
}

func TestExecutor_CyclicGraphFailsRun(t *testing.T) {
	mission := testutil.CreateTestMission(
		testutil.WithMissionID("m-cycle"),
		testutil.WithNodes(testutil.ManualTrigger("t"), testutil.Split("a"), testutil.Split("b")),
		testutil.WithChain("t", "a", "b", "a"),
	)

	result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{Mission: mission})

	require.ErrorIs(t, err, models.ErrCyclicGraph)
	require.NotNil(t, result)
	assert.Equal(t, models.RunStatusFailed, result.Record.Status)
	assert.NotEmpty(t, result.Record.Error)
	assert.NotNil(t, result.Record.FinishedAt)
	assert.Empty(t, result.Record.NodeRuns)
}

func TestExecutor_InvalidMissionFailsRun(t *testing.T) {
	mission := testutil.CreateTestMission(
		testutil.WithNodes(testutil.ManualTrigger("t")),
		testutil.WithEdge("t", "ghost"),
	)

	result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{Mission: mission})

	require.ErrorIs(t, err, models.ErrInvalidMission)
	assert.Equal(t, models.RunStatusFailed, result.Record.Status)

	_, err = newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, models.ErrInvalidMission)
}

func TestExecutor_CancelledContextFailsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestExecutor(t, registry.Deps{}).Run(ctx, Request{Mission: branchingMission("true")})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.RunStatusFailed, result.Record.Status)
}

func TestExecutor_StickyNotesAreNeverExecuted(t *testing.T) {
	mission := testutil.CreateTestMission(
		testutil.WithNodes(
			testutil.StickyNote("note", "this mission is a draft"),
			testutil.Code("only", `return 42;`),
		),
		testutil.WithEdge("note", "only"),
	)

	result, err := newTestExecutor(t, registry.Deps{}).Run(context.Background(), Request{Mission: mission})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Record.Status)
	require.Len(t, result.Record.NodeRuns, 1)
	assert.Equal(t, "only", result.Record.NodeRuns[0].NodeID)

	out, _ := result.Context.NodeOutput("only")
	assert.Equal(t, "42", out.Text)
}

func TestExecutor_RecordsDeliveredOutput(t *testing.T) {
	dispatcher := &mocks.MockDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req protocol.DispatchRequest) bool {
		return req.Channel == "telegram" && req.Schedule.RunID == "run-7"
	})).Return([]protocol.DispatchResult{{OK: true, Recipient: "42", Status: 200}}, nil).Once()

	mission := testutil.CreateTestMission(
		testutil.WithMissionID("m-out"),
		testutil.WithNodes(
			testutil.ManualTrigger("t"),
			testutil.Code("news", "return "+quote(briefing)+";"),
			testutil.Telegram("out"),
		),
		testutil.WithChain("t", "news", "out"),
	)

	result, err := newTestExecutor(t, registry.Deps{Dispatcher: dispatcher}).Run(context.Background(), Request{
		Mission: mission,
		RunID:   "run-7",
		Scope:   models.Scope{UserID: "u-1"},
	})
	require.NoError(t, err)

	record := result.Record
	assert.Equal(t, models.RunStatusCompleted, record.Status)
	assert.Equal(t, "m-out:manual:run-7", record.RunKey)
	assert.NotEmpty(t, record.Output)
	assert.True(t, nodeRun(t, record, "out").OK)
	dispatcher.AssertExpectations(t)
}

func TestRunKey(t *testing.T) {
	at := time.Date(2026, 3, 10, 4, 5, 59, 0, time.FixedZone("EST", -5*3600))

	assert.Equal(t, "m-1:202603100905", RunKey("m-1", models.RunSourceSchedule, "r-1", at))
	assert.Equal(t, "m-1:webhook:r-1", RunKey("m-1", models.RunSourceWebhook, "r-1", at))
}

func quote(s string) string {
	return "\"" + s + "\""
}
