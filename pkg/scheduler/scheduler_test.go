package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graviton-studio/logos/pkg/models"
)

type listSource struct {
	agents []*models.Agent
}

func (s *listSource) Agents(_ context.Context) ([]*models.Agent, error) {
	return s.agents, nil
}

func scheduledAgent(id, schedule string) *models.Agent {
	return &models.Agent{
		ID:   id,
		Name: "Agent " + id,
		StructuredInstructions: &models.StructuredInstructions{
			Objective: "scheduled work",
			Schedule:  schedule,
			Workflow: []models.WorkflowStep{
				{Step: "Collect", Type: models.StepKindInput},
			},
		},
	}
}

func noopLaunch(_ context.Context, _ *models.Agent, _ map[string]any) {}

func TestRegisterSkipsAgentsWithoutSchedule(t *testing.T) {
	s := New(&listSource{}, noopLaunch, nil)

	require.NoError(t, s.Register(scheduledAgent("a1", "")))
	require.NoError(t, s.Register(&models.Agent{ID: "a2"}))
	assert.Equal(t, 0, s.Registered())
}

func TestRegisterRejectsInvalidCron(t *testing.T) {
	s := New(&listSource{}, noopLaunch, nil)

	err := s.Register(scheduledAgent("a1", "not a cron expression"))
	require.Error(t, err)
	assert.Equal(t, 0, s.Registered())
}

func TestStartRegistersSchedulableAgents(t *testing.T) {
	source := &listSource{agents: []*models.Agent{
		scheduledAgent("a1", "*/5 * * * *"),
		scheduledAgent("a2", ""),
		scheduledAgent("a3", "bogus"),
		scheduledAgent("a4", "0 9 * * 1"),
	}}

	s := New(source, noopLaunch, nil)

	require.NoError(t, s.Start(context.Background()))

	defer func() {
		require.NoError(t, s.Stop(context.Background()))
	}()

	assert.Equal(t, 2, s.Registered())
}

func TestTickLaunchesWithScheduleContext(t *testing.T) {
	launched := make(chan map[string]any, 1)
	launch := func(_ context.Context, _ *models.Agent, initialContext map[string]any) {
		launched <- initialContext
	}

	s := New(&listSource{}, launch, nil)
	s.tick(scheduledAgent("a1", "*/5 * * * *"))

	initialContext := <-launched
	assert.Equal(t, "schedule", initialContext["trigger"])
	assert.NotEmpty(t, initialContext["timestamp"])
}
