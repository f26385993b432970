package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/missionfile"
	"github.com/nova-hud/nova/pkg/registry"
	"github.com/nova-hud/nova/pkg/workflow"
)

var errInvalidMissions = errors.New("invalid mission files")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate mission files or directories of mission files",
		ArgsUsage: "<path>...",
		Action: func(_ context.Context, command *cli.Command) error {
			paths := command.Args().Slice()
			if len(paths) == 0 {
				return errors.New("pass at least one mission file or directory")
			}

			reg := registry.NewRegistry(slog.New(slog.DiscardHandler), metrics.New())
			reg.RegisterDefaultNodes(registry.Deps{})

			return validatePaths(command.Root().Writer, reg, paths)
		},
	}
}

func validatePaths(w io.Writer, reg *registry.Registry, paths []string) error {
	files, err := expandPaths(paths)
	if err != nil {
		return err
	}

	invalid := 0

	for _, path := range files {
		if err := validateFile(reg, path); err != nil {
			invalid++

			fmt.Fprintf(w, "invalid %s: %v\n", path, err)

			continue
		}

		fmt.Fprintf(w, "ok      %s\n", path)
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidMissions, invalid, len(files))
	}

	return nil
}

func validateFile(reg *registry.Registry, path string) error {
	mission, err := missionfile.LoadFile(path)
	if err != nil {
		return err
	}

	if err := reg.ValidateMission(mission); err != nil {
		return err
	}

	_, err = workflow.NewPlan(mission)

	return err
}

func expandPaths(paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, path)

			continue
		}

		found, err := missionfile.Paths(path)
		if err != nil {
			return nil, err
		}

		files = append(files, found...)
	}

	return files, nil
}
