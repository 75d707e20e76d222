package models

// ToolDescriptor describes one invocable tool from the external tool channel.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolResult is the gateway's sole output shape: a JSON-safe content value
// with provider-specific wrappers stripped off.
type ToolResult struct {
	Content any  `json:"content"`
	IsError bool `json:"is_error"`
}
