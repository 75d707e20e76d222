package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
)

func TestExecutionRoundTrip(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	record := &models.ExecutionRecord{
		AgentID:        "agent-1",
		UserID:         "user-1",
		State:          models.ExecutionStateRunning,
		TriggerType:    models.TriggerTypeManual,
		InitialContext: map[string]any{"topic": "weather"},
		StartedAt:      &started,
	}

	id, err := store.InsertExecution(ctx, record)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record.State = models.ExecutionStateCompleted
	record.FinalOutputs = map[string]any{"report": "sunny"}
	require.NoError(t, store.UpdateExecution(ctx, record))

	loaded, err := store.ExecutionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStateCompleted, loaded.State)
	assert.Equal(t, "sunny", loaded.FinalOutputs["report"])
	assert.Equal(t, "weather", loaded.InitialContext["topic"])
}

func TestUpdateUnknownExecution(t *testing.T) {
	store := NewPersistence(t.TempDir())

	err := store.UpdateExecution(context.Background(), &models.ExecutionRecord{ID: "missing"})
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionByIDNotFound(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.ExecutionByID(context.Background(), "nope")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestLogsKeepWriteOrder(t *testing.T) {
	root := t.TempDir()
	store := NewPersistence(root).(*Persistence)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, message := range []string{"first", "second", "third"} {
		step := i

		err := store.WriteLog(ctx, &models.ExecutionLogEntry{
			ExecutionID: "exec-1",
			StepNumber:  &step,
			LogType:     models.LogTypeInfo,
			Content:     map[string]any{"message": message},
			Timestamp:   base.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}

	entries, err := store.LogsByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Content["message"])
	assert.Equal(t, "third", entries[2].Content["message"])
}

func TestAgentRoundTrip(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	agent := &models.Agent{
		Name:   "digest-bot",
		Prompt: "Summarize my inbox",
		UserID: "user-1",
	}

	require.NoError(t, store.SaveAgent(ctx, agent))
	require.NotEmpty(t, agent.ID)

	loaded, err := store.AgentByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "digest-bot", loaded.Name)

	agents, err := store.Agents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}

func TestAgentNotFound(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.AgentByID(context.Background(), "ghost")
	assert.True(t, persistence.IsAgentNotFound(err))
}
