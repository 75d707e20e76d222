// Package web provides the HTTP trigger surface for agent workflows.
package web

// TriggerRequest is the body of POST /trigger.
type TriggerRequest struct {
	AgentID string         `json:"agent_id" validate:"required"`
	UserID  string         `json:"user_id"  validate:"required"`
	Context map[string]any `json:"context,omitempty"`
}

// TriggerResponse acknowledges a dispatched run. The run itself happens in
// the background, so no execution outcome is included.
type TriggerResponse struct {
	Message   string `json:"message"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}
