// Package scheduler launches agent workflow runs on their cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/graviton-studio/logos/pkg/models"
)

// AgentSource lists the agents eligible for scheduling.
type AgentSource interface {
	Agents(ctx context.Context) ([]*models.Agent, error)
}

// Launcher dispatches one workflow run for a scheduled agent.
type Launcher func(ctx context.Context, agent *models.Agent, initialContext map[string]any)

// Scheduler registers every agent carrying a cron schedule and launches a
// run on each tick. Runs overlap-protected per entry: a tick is skipped
// while the previous run of the same agent is still going.
type Scheduler struct {
	cron    *cron.Cron
	source  AgentSource
	launch  Launcher
	logger  *slog.Logger
	entries map[string]cron.EntryID
}

func New(source AgentSource, launch Launcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		source:  source,
		launch:  launch,
		logger:  logger.With("module", "scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds one agent's schedule. Agents without a schedule are
// silently skipped; an unparsable cron expression is an error.
func (s *Scheduler) Register(agent *models.Agent) error {
	if agent == nil || agent.StructuredInstructions == nil {
		return nil
	}

	expr := agent.StructuredInstructions.Schedule
	if expr == "" {
		return nil
	}

	_, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for agent %s: %w", expr, agent.ID, err)
	}

	entryID, err := s.cron.AddFunc(expr, func() {
		s.tick(agent)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for agent %s: %w", agent.ID, err)
	}

	s.entries[agent.ID] = entryID
	s.logger.Info("Registered scheduled agent", "agent_id", agent.ID, "cron", expr)

	return nil
}

// Start registers every schedulable agent from the source and starts the
// cron loop. Individual registration failures are logged and skipped so one
// bad expression cannot take the scheduler down.
func (s *Scheduler) Start(ctx context.Context) error {
	agents, err := s.source.Agents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents for scheduling: %w", err)
	}

	for _, agent := range agents {
		err := s.Register(agent)
		if err != nil {
			s.logger.Error("Skipping agent with invalid schedule", "agent_id", agent.ID, "error", err)
		}
	}

	s.logger.Info("Starting scheduler", "registered", len(s.entries))
	s.cron.Start()

	return nil
}

// Stop halts the cron loop and waits for in-flight jobs to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")

	done := s.cron.Stop().Done()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registered reports how many agents currently hold a cron entry.
func (s *Scheduler) Registered() int {
	return len(s.entries)
}

func (s *Scheduler) tick(agent *models.Agent) {
	s.logger.Info("Schedule fired", "agent_id", agent.ID)

	initialContext := map[string]any{
		"trigger":   "schedule",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	s.launch(context.Background(), agent, initialContext)
}
