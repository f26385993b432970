package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/nova-hud/nova/pkg/cmd"
	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/web"
	"github.com/nova-hud/nova/pkg/workflow"
)

type API struct {
	logger     *slog.Logger
	repository *workflow.Repository
	runner     web.Runner
	publisher  eventbus.EventPublisher
	runtime    *cmd.Runtime
	validate   *validator.Validate
	app        *fiber.App
}

// NewAPI wires the HTTP API. A nil publisher makes async runs execute in
// the API process.
func NewAPI(
	logger *slog.Logger,
	repository *workflow.Repository,
	runner web.Runner,
	publisher eventbus.EventPublisher,
	runtime *cmd.Runtime,
) *API {
	return &API{
		logger:     logger,
		repository: repository,
		runner:     runner,
		publisher:  publisher,
		runtime:    runtime,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.repository,
		a.runner,
		a.publisher,
		a.runtime.Registry,
		a.runtime.Guardrail,
		a.runtime.Inbox,
		a.validate,
	)

	// Params and bodies are handed to background runs, so they must outlive the request.
	app := fiber.New(fiber.Config{Immutable: true})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.repository.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Nova API")
	})

	app.Get("/metrics", adaptor.HTTPHandler(a.runtime.Metrics.Handler()))

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	a.app = a.App()

	a.logger.Info("Starting API", "port", port)

	return a.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.app == nil {
		return nil
	}

	return a.app.ShutdownWithContext(ctx)
}
