package main

import (
	"context"
	"errors"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/log"
	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/scheduler"
)

const schedulerDrainTimeout = 30 * time.Second

func schedulerCommand() *cli.Command {
	return &cli.Command{
		Name:  "scheduler",
		Usage: "Run scheduled agents on their cron expressions",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("scheduler")

			cfg := config.FromEnv()

			deps, err := buildServiceDeps(ctx, logger, cfg)
			if err != nil {
				return err
			}
			defer deps.close(context.Background())

			if deps.store == nil {
				return errors.New("the scheduler requires persistence, set DATABASE_URL or DATA_PATH")
			}

			sched := scheduler.New(deps.store, deps.launcher(models.TriggerTypeScheduled), logger)

			err = sched.Start(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()

			drainCtx, cancel := context.WithTimeout(context.Background(), schedulerDrainTimeout)
			defer cancel()

			return sched.Stop(drainCtx)
		},
	}
}
