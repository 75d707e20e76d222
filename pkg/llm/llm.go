// Package llm defines the model-calling channel the session and engine
// consume, plus the content-block shapes a reasoning model's replies are
// made of.
package llm

import (
	"context"

	"github.com/graviton-studio/logos/pkg/models"
)

// Content block types in a model reply.
const (
	BlockTypeText    = "text"
	BlockTypeToolUse = "tool_use"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is one element of a model reply: free text, or a tool-use
// request naming a tool with structured arguments.
type ContentBlock struct {
	Type string
	Text string

	// Tool-use fields.
	ID   string
	Name string
	Args map[string]any
}

// ToolResultBlock carries one tool invocation's result back to the model,
// keyed by the request identifier the model assigned.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Message is one entry of the conversation history. Content is a string,
// a []ContentBlock (assistant reply), or a []ToolResultBlock (tool results).
type Message struct {
	Role    string
	Content any
}

// ModelChannel is the external model-calling transport. Implementations are
// stateless per call and safe for concurrent use.
type ModelChannel interface {
	Complete(ctx context.Context, system string, messages []Message, tools []models.ToolDescriptor) ([]ContentBlock, error)
}
