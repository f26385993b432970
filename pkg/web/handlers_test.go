package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/events"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/mocks"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes/trigger"
	"github.com/nova-hud/nova/pkg/persistence/file"
	"github.com/nova-hud/nova/pkg/providers/dispatch"
	"github.com/nova-hud/nova/pkg/registry"
	"github.com/nova-hud/nova/pkg/testutil"
	"github.com/nova-hud/nova/pkg/web"
	"github.com/nova-hud/nova/pkg/workflow"
)

type testEnv struct {
	app        *fiber.App
	repository *workflow.Repository
	inbox      *dispatch.Inbox
}

func setupTestApp(t *testing.T, publisher eventbus.EventPublisher, missions ...*models.Mission) *testEnv {
	t.Helper()

	repository := workflow.NewRepository(file.NewPersistence(t.TempDir()))
	for _, mission := range missions {
		require.NoError(t, repository.Save(context.Background(), mission))
	}

	reg := registry.NewRegistry(slog.Default(), metrics.New())
	reg.RegisterDefaultNodes(registry.Deps{})

	executor := workflow.NewExecutor(reg, slog.Default())
	manager := workflow.NewManager("api-test", repository, executor, slog.Default())
	inbox := dispatch.NewInbox(10)

	handlers := web.NewAPIHandlers(
		repository,
		manager,
		publisher,
		reg,
		nil,
		inbox,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New(fiber.Config{Immutable: true})
	handlers.Register(app)

	return &testEnv{app: app, repository: repository, inbox: inbox}
}

func manualMission() *models.Mission {
	return testutil.CreateTestMission(
		testutil.WithMissionID("m-manual"),
		testutil.WithLabel("Manual mission"),
		testutil.WithNodes(
			testutil.ManualTrigger("t"),
			testutil.Code("work", `return "done";`),
		),
		testutil.WithChain("t", "work"),
	)
}

func webhookMission() *models.Mission {
	return testutil.CreateTestMission(
		testutil.WithMissionID("m-hook"),
		testutil.WithNodes(
			testutil.WebhookTrigger("t", "hooks/a", "s3cret"),
			testutil.Code("work", `return "hooked";`),
		),
		testutil.WithChain("t", "work"),
	)
}

func do(t *testing.T, app *fiber.App, method, target string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)

			raw = string(encoded)
		}

		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func TestAPIHandlers_GetMissions(t *testing.T) {
	env := setupTestApp(t, nil, manualMission(), webhookMission())

	status, body := do(t, env.app, http.MethodGet, "/missions", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var got struct {
		Missions   []web.MissionSummary `json:"missions"`
		TotalCount int                  `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 2, got.TotalCount)

	ids := []string{got.Missions[0].ID, got.Missions[1].ID}
	assert.ElementsMatch(t, []string{"m-manual", "m-hook"}, ids)
}

func TestAPIHandlers_GetMission(t *testing.T) {
	env := setupTestApp(t, nil, manualMission())

	status, body := do(t, env.app, http.MethodGet, "/missions/m-manual", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var mission models.Mission
	require.NoError(t, json.Unmarshal(body, &mission))
	assert.Equal(t, "Manual mission", mission.Label)
	assert.Len(t, mission.Nodes, 2)

	status, body = do(t, env.app, http.MethodGet, "/missions/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "not_found")
}

func TestAPIHandlers_RunMissionSync(t *testing.T) {
	env := setupTestApp(t, nil, manualMission())

	status, body := do(t, env.app, http.MethodPost, "/missions/m-manual/run", web.RunMissionRequest{UserID: "u-1"}, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var got web.RunResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.NotEmpty(t, got.RunID)

	status, body = do(t, env.app, http.MethodGet, "/missions/m-manual/runs?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var runs struct {
		Runs []models.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, got.RunID, runs.Runs[0].ID)
}

func TestAPIHandlers_RunMissionErrors(t *testing.T) {
	env := setupTestApp(t, nil, manualMission())

	testCases := []struct {
		name   string
		target string
		body   any
		status int
	}{
		{name: "unknown mission", target: "/missions/ghost/run", status: http.StatusNotFound},
		{name: "invalid json", target: "/missions/m-manual/run", body: "{not json", status: http.StatusBadRequest},
		{name: "runs of unknown mission", target: "/missions/ghost/runs", status: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			method := http.MethodPost
			if tc.name == "runs of unknown mission" {
				method = http.MethodGet
			}

			status, _ := do(t, env.app, method, tc.target, tc.body, nil)
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestAPIHandlers_RunMissionDuplicateKey(t *testing.T) {
	env := setupTestApp(t, nil, manualMission())

	request := web.RunMissionRequest{RunKey: "m-manual:once"}

	status, _ := do(t, env.app, http.MethodPost, "/missions/m-manual/run", request, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, env.app, http.MethodPost, "/missions/m-manual/run", request, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "duplicate_run")
}

func TestAPIHandlers_RunMissionAsyncPublishes(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "m-manual", mock.MatchedBy(func(e eventbus.Event) bool {
		requested, ok := e.(events.RunRequested)

		return ok && requested.Source == models.RunSourceManual && requested.Variables["city"] == "Lisbon"
	})).Return(nil).Once()

	env := setupTestApp(t, bus, manualMission())

	status, body := do(t, env.app, http.MethodPost, "/missions/m-manual/run", web.RunMissionRequest{
		Async:     true,
		Variables: map[string]string{"city": "Lisbon"},
	}, nil)
	require.Equal(t, http.StatusAccepted, status)

	var got web.RunResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Queued)
	assert.NotEmpty(t, got.RunID)

	bus.AssertExpectations(t)
}

func TestAPIHandlers_ReceiveWebhook(t *testing.T) {
	env := setupTestApp(t, nil, webhookMission())

	status, body := do(t, env.app, http.MethodPost, "/webhooks/m-hook/hooks/a",
		map[string]any{"event": "push"},
		map[string]string{trigger.SecretHeader: "s3cret"},
	)
	require.Equal(t, http.StatusOK, status, string(body))

	var got web.RunResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.RunStatusCompleted, got.Status)

	status, body = do(t, env.app, http.MethodPost, "/webhooks/m-hook/hooks/a",
		map[string]any{"event": "push"},
		map[string]string{trigger.SecretHeader: "wrong"},
	)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.RunStatusSkipped, got.Status)
}

func TestAPIHandlers_EmitEvent(t *testing.T) {
	listener := testutil.CreateTestMission(
		testutil.WithMissionID("m-event"),
		testutil.WithNodes(
			&models.EventTriggerNode{
				NodeBase:  models.NodeBase{ID: "t", Label: "t", Type: models.NodeTypeEventTrigger},
				EventName: "deploy",
			},
			testutil.Code("work", `return "deployed";`),
		),
		testutil.WithChain("t", "work"),
	)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "m-event", mock.MatchedBy(func(e eventbus.Event) bool {
		requested, ok := e.(events.RunRequested)

		return ok && requested.Source == models.RunSourceEvent && requested.TriggerPayload["event"] == "deploy"
	})).Return(nil).Once()

	env := setupTestApp(t, bus, listener, manualMission())

	status, body := do(t, env.app, http.MethodPost, "/events/deploy", map[string]any{"version": "1.2"}, nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.JSONEq(t, `{"event":"deploy","missions":["m-event"]}`, string(body))

	bus.AssertExpectations(t)
}

func TestAPIHandlers_ScoreQuality(t *testing.T) {
	env := setupTestApp(t, nil)

	status, body := do(t, env.app, http.MethodPost, "/quality", web.QualityRequest{
		Text: "Bitcoin closed at $65,000 after a calm session. Ether held near $3,200 while volumes stayed light across major exchanges.",
	}, nil)
	require.Equal(t, http.StatusOK, status)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Contains(t, got, "report")
	assert.EqualValues(t, 46, got["threshold"])
	assert.NotContains(t, got, "decision")

	status, _ = do(t, env.app, http.MethodPost, "/quality", web.QualityRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, env.app, http.MethodPost, "/quality", web.QualityRequest{Text: "x", DetailLevel: "verbose"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_NodeTypesAndHealth(t *testing.T) {
	env := setupTestApp(t, nil)

	status, body := do(t, env.app, http.MethodGet, "/node-types", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var descriptions []registry.Description
	require.NoError(t, json.Unmarshal(body, &descriptions))
	assert.Len(t, descriptions, len(models.AllNodeTypes()))

	status, body = do(t, env.app, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestAPIHandlers_GetInbox(t *testing.T) {
	env := setupTestApp(t, nil)

	_, err := env.inbox.Send(context.Background(), "u-1", dispatch.Message{Text: "Morning brief", MissionID: "m-1"})
	require.NoError(t, err)

	status, body := do(t, env.app, http.MethodGet, "/inbox/u-1", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var got struct {
		Messages []dispatch.InboxMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Morning brief", got.Messages[0].Text)

	status, body = do(t, env.app, http.MethodGet, "/inbox/nobody", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"messages":[]}`, string(body))
}

func TestAPIHandlers_RunMissionThroughRequester(t *testing.T) {
	repository := workflow.NewRepository(file.NewPersistence(t.TempDir()))
	require.NoError(t, repository.Save(context.Background(), manualMission()))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "m-manual", mock.Anything).Return(nil).Once()

	reg := registry.NewRegistry(slog.Default(), metrics.New())
	handlers := web.NewAPIHandlers(
		repository,
		workflow.NewRequester(bus),
		bus,
		reg,
		nil,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New(fiber.Config{Immutable: true})
	handlers.Register(app)

	status, body := do(t, app, http.MethodPost, "/missions/m-manual/run", nil, nil)
	require.Equal(t, http.StatusAccepted, status, string(body))
	assert.Contains(t, string(body), `"queued":true`)

	status, _ = do(t, app, http.MethodGet, "/inbox/u-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	bus.AssertExpectations(t)
}
