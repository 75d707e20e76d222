// Package persistence provides the data storage abstraction layer for agents
// and their execution history.
package persistence

import (
	"context"

	"github.com/graviton-studio/logos/pkg/models"
)

// ExecutionStore records the lifecycle of a single run. InsertExecution
// returns the store-confirmed execution ID, which may differ from the one
// the caller generated.
type ExecutionStore interface {
	InsertExecution(ctx context.Context, record *models.ExecutionRecord) (string, error)
	UpdateExecution(ctx context.Context, record *models.ExecutionRecord) error
	ExecutionByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error)
}

// LogSink receives per-step execution log entries. Implementations must
// tolerate high write rates; a failed write must not fail the run.
type LogSink interface {
	WriteLog(ctx context.Context, entry *models.ExecutionLogEntry) error
}

// AgentStore holds agent definitions.
type AgentStore interface {
	AgentByID(ctx context.Context, agentID string) (*models.Agent, error)
	SaveAgent(ctx context.Context, agent *models.Agent) error
	Agents(ctx context.Context) ([]*models.Agent, error)
}

type Persistence interface {
	ExecutionStore
	LogSink
	AgentStore

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
