// Package models defines the core domain models for agent workflow execution.
package models

import "time"

// Agent is a declarative agent definition. Its structured instructions carry
// the ordered workflow the engine executes.
type Agent struct {
	ID                     string                  `json:"id"`
	Name                   string                  `json:"name"                              validate:"required,min=3"`
	Prompt                 string                  `json:"prompt"`
	Description            string                  `json:"description"`
	StructuredInstructions *StructuredInstructions `json:"structured_instructions,omitempty"`
	IsPublic               bool                    `json:"is_public"`
	UserID                 string                  `json:"user_id,omitempty"`
	CreatedAt              *time.Time              `json:"created_at,omitempty"`
	UpdatedAt              *time.Time              `json:"updated_at,omitempty"`
}

// StructuredInstructions hold the agent's objective and its ordered workflow.
type StructuredInstructions struct {
	Objective    string         `json:"objective"          validate:"required"`
	Workflow     []WorkflowStep `json:"workflow"           validate:"required,min=1,dive"`
	Schedule     string         `json:"schedule,omitempty"`
	Integrations []Integration  `json:"integrations"`
}

// Integration declares an external service the agent is allowed to touch.
type Integration struct {
	Name        string   `json:"name"        validate:"required"`
	Type        string   `json:"type"        validate:"required,oneof=read write"`
	Permissions []string `json:"permissions"`
}

// HasWorkflow reports whether the agent carries an executable workflow.
func (a *Agent) HasWorkflow() bool {
	return a.StructuredInstructions != nil && len(a.StructuredInstructions.Workflow) > 0
}
