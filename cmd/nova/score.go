package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/nova-hud/nova/pkg/config"
	"github.com/nova-hud/nova/pkg/guardrail"
)

func NewScoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Print the guardrail report of the text read from stdin",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "threshold",
				Usage:   "Score below which output counts as low signal",
				Value:   config.DefaultQualityThreshold,
				Sources: cli.EnvVars(guardrail.ThresholdEnv),
			},
			&cli.StringFlag{
				Name:  "evidence",
				Usage: "JSON file with an array of evidence items; prints the fallback decision too",
			},
			&cli.StringFlag{
				Name:  "detail-level",
				Usage: "Fallback detail level (concise, standard, detailed)",
				Value: "standard",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			raw, err := io.ReadAll(command.Root().Reader)
			if err != nil {
				return fmt.Errorf("failed to read text: %w", err)
			}

			text := strings.TrimSpace(string(raw))
			if text == "" {
				return errors.New("no text on stdin")
			}

			evidence, err := readEvidence(command.String("evidence"))
			if err != nil {
				return err
			}

			quality := guardrail.New(command.Int("threshold"), nil)

			response := map[string]any{
				"report":    quality.Evaluate(text, evidence),
				"threshold": quality.Threshold(),
			}

			if len(evidence) > 0 {
				response["decision"] = quality.Apply(text, evidence, command.String("detail-level"))
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(response)
		},
	}
}

func readEvidence(path string) ([]any, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}

	var evidence []any
	if err := json.Unmarshal(data, &evidence); err != nil {
		return nil, fmt.Errorf("evidence must be a JSON array: %w", err)
	}

	return evidence, nil
}
