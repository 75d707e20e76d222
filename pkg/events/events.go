// Package events defines event types for agent execution lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/graviton-studio/logos/pkg/models"
)

type EventType string

// Kafka topic for execution lifecycle events.
const Topic = "logos.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	StepFinishedEvent       EventType = "execution.step.finished"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	AgentID     string         `json:"agent_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for one lifecycle event.
func NewBaseEvent(eventType EventType, agentID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AgentID:     agentID,
		ExecutionID: executionID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	TriggerType    models.TriggerType `json:"trigger_type,omitempty"`
	InitialContext map[string]any     `json:"initial_context,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	FinalOutputs map[string]any `json:"final_outputs,omitempty"`
	Duration     time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type StepFinished struct {
	BaseEvent

	StepName   string         `json:"step_name"`
	StepNumber int            `json:"step_number"`
	StepKind   string         `json:"step_kind"`
	Outputs    map[string]any `json:"outputs,omitempty"`
}

func (e StepFinished) GetType() EventType {
	return StepFinishedEvent
}
