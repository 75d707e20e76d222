package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
)

// AgentRepository handles agent-related database operations.
type AgentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(db *sql.DB, logger *slog.Logger) *AgentRepository {
	return &AgentRepository{db: db, logger: logger}
}

// GetAll returns all agents from the database.
func (r *AgentRepository) GetAll(ctx context.Context) ([]*models.Agent, error) {
	query := agentSelect + ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	agents := make([]*models.Agent, 0)

	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}

		agents = append(agents, agent)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

// GetByID returns an agent by its ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	row := r.db.QueryRowContext(ctx, agentSelect+` WHERE id = $1`, id)

	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.AgentError{Op: "GetByID", AgentID: id, Err: persistence.ErrAgentNotFound}
		}

		return nil, &persistence.AgentError{Op: "GetByID", AgentID: id, Err: err}
	}

	return agent, nil
}

// Save upserts an agent.
func (r *AgentRepository) Save(ctx context.Context, agent *models.Agent) error {
	now := time.Now().UTC()

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}

	if agent.CreatedAt == nil {
		agent.CreatedAt = &now
	}

	agent.UpdatedAt = &now

	instructionsJSON, err := json.Marshal(agent.StructuredInstructions)
	if err != nil {
		return &persistence.AgentError{Op: "Save", AgentID: agent.ID, Err: fmt.Errorf("failed to marshal structured instructions: %w", err)}
	}

	query := `
		INSERT INTO agents (id, name, prompt, description, structured_instructions, is_public, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			prompt = EXCLUDED.prompt,
			description = EXCLUDED.description,
			structured_instructions = EXCLUDED.structured_instructions,
			is_public = EXCLUDED.is_public,
			user_id = EXCLUDED.user_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Prompt,
		agent.Description,
		instructionsJSON,
		agent.IsPublic,
		agent.UserID,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if err != nil {
		return &persistence.AgentError{Op: "Save", AgentID: agent.ID, Err: err}
	}

	return nil
}

const agentSelect = `
	SELECT
		id
	  , name
	  , prompt
	  , description
	  , structured_instructions
	  , is_public
	  , user_id
	  , created_at
	  , updated_at
	FROM agents
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var (
		agent            models.Agent
		instructionsJSON []byte
	)

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Prompt,
		&agent.Description,
		&instructionsJSON,
		&agent.IsPublic,
		&agent.UserID,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(instructionsJSON) > 0 && string(instructionsJSON) != "null" {
		var instructions models.StructuredInstructions

		err = json.Unmarshal(instructionsJSON, &instructions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal structured instructions: %w", err)
		}

		agent.StructuredInstructions = &instructions
	}

	return &agent, nil
}
