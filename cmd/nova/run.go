package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/nova-hud/nova/pkg/cmd"
	"github.com/nova-hud/nova/pkg/config"
	"github.com/nova-hud/nova/pkg/eventbus"
	"github.com/nova-hud/nova/pkg/log"
	"github.com/nova-hud/nova/pkg/missionfile"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/persistence"
	"github.com/nova-hud/nova/pkg/persistence/file"
	"github.com/nova-hud/nova/pkg/workflow"
)

var errMissionArgument = errors.New("pass a mission ID or --file")

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run one mission now and print the run summary",
		ArgsUsage: "[mission-id]",
		Flags: append(config.Flags(),
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Mission file to run instead of a stored mission",
			},
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "Run variable as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "User the run acts on behalf of",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the run record as JSON",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := config.FromCommand(command)
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel)
			logger := log.WithModule("nova-run")

			variables, err := parseVariables(command.StringSlice("var"))
			if err != nil {
				return err
			}

			store, missionID, err := runStore(ctx, cfg, command)
			if err != nil {
				return err
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

			executor := workflow.NewExecutor(runtime.Registry, logger,
				workflow.WithPublisher(eventbus.Nop{}),
				workflow.WithMetrics(runtime.Metrics),
			)
			manager := workflow.NewManager("cli", workflow.NewRepository(store), executor, logger, workflow.WithRunTimeout(cfg.RunTimeout))

			result, err := manager.Execute(ctx, workflow.Trigger{
				MissionID: missionID,
				Source:    models.RunSourceManual,
				RunID:     uuid.NewString(),
				Scope:     models.Scope{UserID: command.String("user-id")},
				Variables: variables,
			})
			if result == nil {
				return err
			}

			if command.Bool("json") {
				encoder := json.NewEncoder(command.Root().Writer)
				encoder.SetIndent("", "  ")

				if encodeErr := encoder.Encode(result.Record); encodeErr != nil {
					return encodeErr
				}
			} else {
				printRunSummary(command.Root().Writer, result.Record)
			}

			return err
		},
	}
}

// runStore opens the store holding the mission to run. A mission file is
// loaded into a throwaway file store so that the run leaves no trace.
func runStore(ctx context.Context, cfg *config.Config, command *cli.Command) (persistence.Persistence, string, error) {
	path := command.String("file")

	if path == "" {
		missionID := command.Args().First()
		if missionID == "" {
			return nil, "", errMissionArgument
		}

		store, err := cmd.NewPersistence(ctx, log.WithModule("nova-run"), cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}

		return store, missionID, nil
	}

	mission, err := missionfile.LoadFile(path)
	if err != nil {
		return nil, "", err
	}

	dir, err := os.MkdirTemp("", "nova-run-*")
	if err != nil {
		return nil, "", err
	}

	store := &tempStore{Persistence: file.NewPersistence(dir), dir: dir}

	if err := store.SaveMission(ctx, mission); err != nil {
		_ = store.Close(ctx)

		return nil, "", err
	}

	return store, mission.ID, nil
}

type tempStore struct {
	*file.Persistence
	dir string
}

func (s *tempStore) Close(ctx context.Context) error {
	return errors.Join(s.Persistence.Close(ctx), os.RemoveAll(s.dir))
}

func parseVariables(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	variables := make(map[string]string, len(values))

	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", value)
		}

		variables[strings.TrimSpace(key)] = val
	}

	return variables, nil
}

func printRunSummary(w io.Writer, record *models.RunRecord) {
	fmt.Fprintf(w, "mission %s run %s: %s\n", record.MissionID, record.ID, record.Status)

	for _, node := range record.NodeRuns {
		outcome := "ok"

		switch {
		case node.Skipped:
			outcome = "skipped"
		case !node.OK:
			outcome = "failed: " + node.Error
		}

		fmt.Fprintf(w, "  %-24s %-18s %s (%dms)\n", node.NodeID, node.NodeType, outcome, node.DurationMs)
	}

	if record.Error != "" {
		fmt.Fprintf(w, "error: %s\n", record.Error)
	}

	if record.Output != "" {
		fmt.Fprintf(w, "\n%s\n", record.Output)
	}
}
