// Command nova runs missions: the API, the scheduler and the workers, plus
// tools to run, validate and score missions from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/nova-hud/nova/pkg/config"
	"github.com/nova-hud/nova/pkg/sandbox"
)

func NewApp() *cli.Command {
	return &cli.Command{
		Name:                  "nova",
		Usage:                 "Schedule and run missions",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewServeCommand(),
			NewAPICommand(),
			NewWorkerCommand(),
			NewSchedulerCommand(),
			NewRunCommand(),
			NewValidateCommand(),
			NewScoreCommand(),
		},
	}
}

func main() {
	sandbox.ServeIfWorker()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if err := NewApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
