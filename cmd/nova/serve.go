package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/nova-hud/nova/pkg/cmd"
	"github.com/nova-hud/nova/pkg/config"
	"github.com/nova-hud/nova/pkg/log"
	"github.com/nova-hud/nova/pkg/missionfile"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/otelhelper"
	"github.com/nova-hud/nova/pkg/scheduler"
	"github.com/nova-hud/nova/pkg/web"
	"github.com/nova-hud/nova/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

// roles selects the components a process runs. "serve" runs all of them;
// the split commands let the API, the workers and the scheduler scale apart
// over a Kafka bus.
type roles struct {
	api       bool
	worker    bool
	scheduler bool
}

func NewServeCommand() *cli.Command {
	return newRoleCommand("serve", "Start the API, the scheduler and a worker", roles{api: true, worker: true, scheduler: true})
}

func NewAPICommand() *cli.Command {
	return newRoleCommand("api", "Start the API; runs are requested on the event bus", roles{api: true})
}

func NewWorkerCommand() *cli.Command {
	return newRoleCommand("worker", "Start a worker executing requested runs", roles{worker: true})
}

func NewSchedulerCommand() *cli.Command {
	return newRoleCommand("scheduler", "Start the scheduler; due runs are requested on the event bus", roles{scheduler: true})
}

func newRoleCommand(name, usage string, r roles) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: append(config.Flags(),
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := config.FromCommand(command)
			if err != nil {
				return err
			}

			if !r.worker && cfg.EventBus != "kafka" {
				return fmt.Errorf("%s needs EVENT_BUS_TYPE=kafka to reach the workers", name)
			}

			log.Setup(cfg.LogLevel)

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("nova-"+name).With("workerId", workerID)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, r, workerID, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, r roles, workerID string, logger *slog.Logger) error {
	logger.InfoContext(ctx, "Initializing Nova")

	tracer, shutdownTracer, err := newTracer(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}()

	store, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	runtime, err := cmd.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := runtime.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close cache", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(cfg.EventBus, cfg.KafkaBrokers, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	repository := workflow.NewRepository(store)
	executor := workflow.NewExecutor(runtime.Registry, logger,
		workflow.WithPublisher(eventBus),
		workflow.WithTracer(tracer),
		workflow.WithMetrics(runtime.Metrics),
	)
	manager := workflow.NewManager(workerID, repository, executor, logger, workflow.WithRunTimeout(cfg.RunTimeout))

	if cfg.MissionsPath != "" && (r.api || r.scheduler) {
		go func() {
			err := missionfile.Watch(ctx, cfg.MissionsPath, logger, syncMissions(repository, runtime.Registry.ValidateMission, logger))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "Mission watcher stopped", "error", err)
			}
		}()
	}

	// Without a local worker, runs are requested on the bus.
	var runner web.Runner = manager
	if !r.worker {
		runner = workflow.NewRequester(eventBus)
	}

	if r.worker {
		if err := manager.Start(ctx, eventBus); err != nil {
			return fmt.Errorf("failed to start workflow manager: %w", err)
		}
	}

	var sched *scheduler.Scheduler

	if r.scheduler {
		sched = scheduler.New(repository, runner, logger,
			scheduler.WithConcurrency(cfg.SchedulerConcurrency),
			scheduler.WithRunTimeout(cfg.RunTimeout),
		)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	var api *API

	listenErr := make(chan error, 1)

	if r.api {
		api = NewAPI(logger, repository, runner, eventBus, runtime)

		go func() {
			listenErr <- api.Start(cfg.Port)
		}()
	}

	select {
	case err = <-listenErr:
		logger.ErrorContext(ctx, "API stopped", "error", err)
	case <-ctx.Done():
		logger.InfoContext(ctx, "Shutting down Nova")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if api != nil {
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown API", "error", err)
		}
	}

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
		}
	}

	return err
}

// nolint:ireturn
func newTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !cfg.Tracing {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, "nova")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}

// syncMissions stores every mission loaded from disk. Invalid missions are
// logged and left out; the others still load.
func syncMissions(repository *workflow.Repository, validate func(*models.Mission) error, logger *slog.Logger) missionfile.ApplyFunc {
	return func(ctx context.Context, missions []*models.Mission) error {
		var errs []error

		for _, mission := range missions {
			if err := validate(mission); err != nil {
				logger.WarnContext(ctx, "Skipping invalid mission file", "mission_id", mission.ID, "error", err)

				continue
			}

			if err := repository.Save(ctx, mission); err != nil {
				errs = append(errs, fmt.Errorf("failed to save mission %s: %w", mission.ID, err))
			}
		}

		logger.InfoContext(ctx, "Mission files loaded", "count", len(missions))

		return errors.Join(errs...)
	}
}
