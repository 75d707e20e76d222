package main

import (
	"context"
	"log/slog"

	"github.com/graviton-studio/logos/pkg/cmd"
	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/eventbus"
	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
	"github.com/graviton-studio/logos/pkg/runner"
	"github.com/graviton-studio/logos/pkg/session"
	"github.com/graviton-studio/logos/pkg/tools"
)

// storeOrNil narrows the optional persistence to its execution store role.
func storeOrNil(p persistence.Persistence) persistence.ExecutionStore {
	if p == nil {
		return nil
	}

	return p
}

func sinkOrNil(p persistence.Persistence) persistence.LogSink {
	if p == nil {
		return nil
	}

	return p
}

// serviceDeps bundles the long-lived pieces shared by the api and scheduler
// commands. Each dispatched run builds its own Runner on top of them.
type serviceDeps struct {
	cfg     *config.Config
	store   persistence.Persistence
	bus     eventbus.EventBus
	sess    *session.Session
	gateway *tools.Gateway
	logger  *slog.Logger
}

func buildServiceDeps(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*serviceDeps, error) {
	store, err := cmd.NewPersistence(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	bus, err := cmd.NewEventBus(logger, cfg)
	if err != nil {
		return nil, err
	}

	sess, gateway, err := cmd.NewSession(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	return &serviceDeps{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		sess:    sess,
		gateway: gateway,
		logger:  logger,
	}, nil
}

func (d *serviceDeps) close(ctx context.Context) {
	if d.store != nil {
		err := d.store.Close(ctx)
		if err != nil {
			d.logger.Error("Failed to close persistence", "error", err)
		}
	}

	if d.bus != nil {
		err := d.bus.Close()
		if err != nil {
			d.logger.Error("Failed to close event bus", "error", err)
		}
	}
}

// launcher returns the dispatch function handed to the web API and the
// scheduler. Every run gets a fresh Runner; failures are logged, not
// propagated, since the caller has already acknowledged the trigger.
func (d *serviceDeps) launcher(triggerType models.TriggerType) func(context.Context, *models.Agent, map[string]any) {
	return func(ctx context.Context, agent *models.Agent, initialContext map[string]any) {
		r, err := runner.NewRunner(agent, d.sess, d.gateway, storeOrNil(d.store), sinkOrNil(d.store), d.bus, *d.cfg, d.logger)
		if err != nil {
			d.logger.Error("Failed to build runner for triggered agent", "agent_id", agent.ID, "error", err)

			return
		}

		r.SetTrigger(triggerType, "")

		result, err := r.Run(ctx, initialContext)
		if err != nil {
			d.logger.Error("Triggered run failed", "agent_id", agent.ID, "error", err)

			return
		}

		d.logger.Info("Triggered run finished",
			"agent_id", agent.ID,
			"execution_id", result.ExecutionID,
			"final_state", result.FinalState)
	}
}
