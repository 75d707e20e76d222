// Package postgresql provides PostgreSQL persistence for agents and
// execution records.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
	"github.com/graviton-studio/logos/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	agentRepo     *AgentRepository
	executionRepo *ExecutionRepository
}

// NewPersistence connects, runs migrations, and returns a ready store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		agentRepo:     NewAgentRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) InsertExecution(ctx context.Context, record *models.ExecutionRecord) (string, error) {
	return p.executionRepo.Insert(ctx, record)
}

func (p *Persistence) UpdateExecution(ctx context.Context, record *models.ExecutionRecord) error {
	return p.executionRepo.Update(ctx, record)
}

func (p *Persistence) ExecutionByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	return p.executionRepo.GetByID(ctx, executionID)
}

func (p *Persistence) WriteLog(ctx context.Context, entry *models.ExecutionLogEntry) error {
	return p.executionRepo.WriteLog(ctx, entry)
}

func (p *Persistence) AgentByID(ctx context.Context, agentID string) (*models.Agent, error) {
	return p.agentRepo.GetByID(ctx, agentID)
}

func (p *Persistence) SaveAgent(ctx context.Context, agent *models.Agent) error {
	return p.agentRepo.Save(ctx, agent)
}

func (p *Persistence) Agents(ctx context.Context) ([]*models.Agent, error) {
	return p.agentRepo.GetAll(ctx)
}

var _ persistence.Persistence = (*Persistence)(nil)
