package models

import "time"

// LogType categorizes an execution log entry.
type LogType string

const (
	LogTypeInfo          LogType = "info"
	LogTypeDebug         LogType = "debug"
	LogTypeWarning       LogType = "warning"
	LogTypeError         LogType = "error"
	LogTypeToolCall      LogType = "tool_call"
	LogTypeToolResult    LogType = "tool_result"
	LogTypeLLMInput      LogType = "llm_input"
	LogTypeLLMOutput     LogType = "llm_output"
	LogTypeNodeExecution LogType = "node_execution"
)

// ExecutionLogEntry is an append-only observability record for one run.
// Writing it is fire-and-forget: sink failures never abort the run.
type ExecutionLogEntry struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id" validate:"required"`
	NodeID      string         `json:"node_id,omitempty"`
	StepNumber  *int           `json:"step_number,omitempty"`
	LogType     LogType        `json:"log_type"     validate:"required"`
	Content     map[string]any `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
}
