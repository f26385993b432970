package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-hud/nova/pkg/cmd"
	"github.com/nova-hud/nova/pkg/config"
	"github.com/nova-hud/nova/pkg/persistence/file"
	"github.com/nova-hud/nova/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	runtime, err := cmd.NewRuntime(context.Background(), config.Default(), slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = runtime.Close()
	})

	repository := workflow.NewRepository(file.NewPersistence(t.TempDir()))
	executor := workflow.NewExecutor(runtime.Registry, slog.Default())
	manager := workflow.NewManager("api-test", repository, executor, slog.Default())

	return NewAPI(slog.Default(), repository, manager, nil, runtime).App()
}

func get(t *testing.T, app *fiber.App, target string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Nova API", body)
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t)

	status, _ := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)

	status, _ = get(t, app, "/readyz")
	assert.Equal(t, http.StatusOK, status)

	status, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Nova API is healthy")
}

func TestAPI_Metrics(t *testing.T) {
	app := setupTestApp(t)

	status, _ := get(t, app, "/missions")
	require.Equal(t, http.StatusOK, status)

	status, body := get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

func TestAPI_MissionRoutes(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, "/missions")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"missions":[],"total_count":0}`, body)

	status, _ = get(t, app, "/missions/ghost")
	assert.Equal(t, http.StatusNotFound, status)
}
