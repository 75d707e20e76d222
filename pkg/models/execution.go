package models

import "time"

// ExecutionState represents the lifecycle state of one workflow run.
type ExecutionState string

const (
	ExecutionStatePending   ExecutionState = "pending"
	ExecutionStateRunning   ExecutionState = "running"
	ExecutionStateCompleted ExecutionState = "completed"
	ExecutionStateFailed    ExecutionState = "failed"
	ExecutionStateCancelled ExecutionState = "cancelled"
)

// IsTerminal reports whether the state is a valid final state.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionStateCompleted || s == ExecutionStateFailed || s == ExecutionStateCancelled
}

// TriggerType identifies how a run was started.
type TriggerType string

const (
	TriggerTypeWebhook   TriggerType = "webhook"
	TriggerTypeScheduled TriggerType = "scheduled"
	TriggerTypeManual    TriggerType = "manual"
)

// ExecutionRecord is the persisted record of one workflow run. The engine
// owns it until the finalizer hands it to the store; it transitions exactly
// once into a terminal state.
type ExecutionRecord struct {
	ID             string         `json:"id"`
	AgentID        string         `json:"agent_id"                  validate:"required"`
	UserID         string         `json:"user_id,omitempty"`
	TriggerID      string         `json:"trigger_id,omitempty"`
	TriggerType    TriggerType    `json:"trigger_type,omitempty"`
	InitialContext map[string]any `json:"initial_context,omitempty"`
	State          ExecutionState `json:"state"`
	FinalOutputs   map[string]any `json:"final_outputs,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	ErrorDetails   map[string]any `json:"error_details,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RunResult is what a single workflow run returns to its caller. Partial
// final outputs gathered before a failure are included, not discarded.
type RunResult struct {
	ExecutionID    string         `json:"execution_id"`
	FinalState     ExecutionState `json:"workflow_final_status"`
	FinalOutputs   map[string]any `json:"final_outputs"`
	ErrorMessage   string         `json:"error,omitempty"`
	ContextPreview map[string]any `json:"context_preview,omitempty"`
}
