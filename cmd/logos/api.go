package main

import (
	"context"
	"errors"
	"strconv"

	cli "github.com/urfave/cli/v3"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/log"
	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/web"
)

func apiCommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the webhook trigger API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   config.DefaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("api")

			cfg := config.FromEnv()
			if p := command.Int("port"); p != 0 {
				cfg.Port = p
			}

			deps, err := buildServiceDeps(ctx, logger, cfg)
			if err != nil {
				return err
			}
			defer deps.close(context.Background())

			if deps.store == nil {
				return errors.New("the api requires persistence, set DATABASE_URL or DATA_PATH")
			}

			api := web.NewAPI(deps.store, deps.launcher(models.TriggerTypeWebhook), cfg.WebhookSecret, logger)
			app := api.App()

			errCh := make(chan error, 1)

			go func() {
				logger.Info("Starting trigger API", "port", cfg.Port)
				errCh <- app.Listen(":" + strconv.Itoa(cfg.Port))
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("Shutting down trigger API")

				return app.Shutdown()
			}
		},
	}
}
