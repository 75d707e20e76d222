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

// ExecutionRepository handles execution-record and log database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Insert writes a new execution record and returns the stored ID.
func (r *ExecutionRepository) Insert(ctx context.Context, record *models.ExecutionRecord) (string, error) {
	now := time.Now().UTC()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	initialContextJSON, err := json.Marshal(record.InitialContext)
	if err != nil {
		return "", persistence.NewExecutionError("Insert", record.ID, fmt.Errorf("failed to marshal initial context: %w", err))
	}

	query := `
		INSERT INTO agent_executions (id, agent_id, user_id, trigger_id, trigger_type,
initial_context, state, error_message, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.AgentID,
		record.UserID,
		record.TriggerID,
		record.TriggerType,
		initialContextJSON,
		record.State,
		record.ErrorMessage,
		record.StartedAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return "", persistence.NewExecutionError("Insert", record.ID, err)
	}

	return record.ID, nil
}

// Update rewrites the mutable fields of an execution record.
func (r *ExecutionRepository) Update(ctx context.Context, record *models.ExecutionRecord) error {
	record.UpdatedAt = time.Now().UTC()

	finalOutputsJSON, err := json.Marshal(record.FinalOutputs)
	if err != nil {
		return persistence.NewExecutionError("Update", record.ID, fmt.Errorf("failed to marshal final outputs: %w", err))
	}

	errorDetailsJSON, err := json.Marshal(record.ErrorDetails)
	if err != nil {
		return persistence.NewExecutionError("Update", record.ID, fmt.Errorf("failed to marshal error details: %w", err))
	}

	query := `
		UPDATE agent_executions SET
			state = $2,
			final_outputs = $3,
			error_message = $4,
			error_details = $5,
			completed_at = $6,
			updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.State,
		finalOutputsJSON,
		record.ErrorMessage,
		errorDetailsJSON,
		record.CompletedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Update", record.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", record.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Update", record.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// GetByID returns one execution record.
func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	query := `
		SELECT
			id
		  , agent_id
		  , user_id
		  , trigger_id
		  , trigger_type
		  , initial_context
		  , state
		  , final_outputs
		  , error_message
		  , error_details
		  , started_at
		  , completed_at
		  , created_at
		  , updated_at
		FROM agent_executions
		WHERE id = $1
	`

	var (
		record             models.ExecutionRecord
		userID             sql.NullString
		triggerID          sql.NullString
		triggerType        sql.NullString
		errorMessage       sql.NullString
		initialContextJSON []byte
		finalOutputsJSON   []byte
		errorDetailsJSON   []byte
	)

	err := r.db.QueryRowContext(ctx, query, executionID).Scan(
		&record.ID,
		&record.AgentID,
		&userID,
		&triggerID,
		&triggerType,
		&initialContextJSON,
		&record.State,
		&finalOutputsJSON,
		&errorMessage,
		&errorDetailsJSON,
		&record.StartedAt,
		&record.CompletedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	record.UserID = userID.String
	record.TriggerID = triggerID.String
	record.TriggerType = models.TriggerType(triggerType.String)
	record.ErrorMessage = errorMessage.String

	err = unmarshalJSONB(initialContextJSON, &record.InitialContext)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	err = unmarshalJSONB(finalOutputsJSON, &record.FinalOutputs)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	err = unmarshalJSONB(errorDetailsJSON, &record.ErrorDetails)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	return &record, nil
}

// WriteLog appends one execution log entry.
func (r *ExecutionRepository) WriteLog(ctx context.Context, entry *models.ExecutionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	contentJSON, err := json.Marshal(entry.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal log content: %w", err)
	}

	query := `
		INSERT INTO agent_execution_logs (id, execution_id, node_id, step_number, log_type, content, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.NodeID,
		entry.StepNumber,
		entry.LogType,
		contentJSON,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}

	return nil
}

func unmarshalJSONB(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	err := json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSONB column: %w", err)
	}

	return nil
}
