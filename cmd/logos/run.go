package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/graviton-studio/logos/pkg/cmd"
	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/log"
	"github.com/graviton-studio/logos/pkg/runner"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute one agent workflow and print the result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "agent-file",
				Aliases:  []string{"f"},
				Usage:    "Path to the agent definition (YAML or JSON)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "context",
				Aliases: []string{"c"},
				Usage:   "Initial context variable as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "context-json",
				Usage: "Initial context as a JSON object (merged over --context)",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "File persistence root for execution records",
				Sources: cli.EnvVars("DATA_PATH"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection URL for execution records",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("run")

			cfg := config.FromEnv()
			if v := command.String("data-dir"); v != "" {
				cfg.DataPath = v
			}

			if v := command.String("database-url"); v != "" {
				cfg.DatabaseURL = v
			}

			agent, err := config.LoadAgentFile(command.String("agent-file"))
			if err != nil {
				return err
			}

			initialContext, err := parseInitialContext(
				command.StringSlice("context"), command.String("context-json"))
			if err != nil {
				return err
			}

			store, err := cmd.NewPersistence(ctx, logger, cfg)
			if err != nil {
				return err
			}

			if store != nil {
				defer func() {
					err := store.Close(ctx)
					if err != nil {
						logger.Error("Failed to close persistence", "error", err)
					}
				}()
			}

			bus, err := cmd.NewEventBus(logger, cfg)
			if err != nil {
				return err
			}

			defer func() {
				err := bus.Close()
				if err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			sess, gateway, err := cmd.NewSession(ctx, logger, cfg)
			if err != nil {
				return err
			}

			r, err := runner.NewRunner(agent, sess, gateway, storeOrNil(store), sinkOrNil(store), bus, *cfg, logger)
			if err != nil {
				return err
			}

			result, err := r.Run(ctx, initialContext)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(encoded))

			return nil
		},
	}
}

func parseInitialContext(pairs []string, contextJSON string) (map[string]any, error) {
	initialContext := make(map[string]any)

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context pair %q, expected key=value", pair)
		}

		initialContext[key] = value
	}

	if contextJSON != "" {
		var parsed map[string]any

		err := json.Unmarshal([]byte(contextJSON), &parsed)
		if err != nil {
			return nil, fmt.Errorf("invalid context JSON: %w", err)
		}

		for key, value := range parsed {
			initialContext[key] = value
		}
	}

	return initialContext, nil
}
