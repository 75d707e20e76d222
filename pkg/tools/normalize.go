package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/graviton-studio/logos/pkg/models"
)

// Normalize converts a raw channel response into a ToolResult whose Content
// is a plain string, map, or slice, so downstream serialization never sees
// transport-specific types.
func Normalize(raw any) models.ToolResult {
	switch v := raw.(type) {
	case nil:
		return models.ToolResult{Content: nil}
	case *mcp.CallToolResult:
		return normalizeMCP(v)
	case mcp.CallToolResult:
		return normalizeMCP(&v)
	case string:
		return models.ToolResult{Content: v}
	default:
		return models.ToolResult{Content: jsonSafe(v)}
	}
}

func normalizeMCP(result *mcp.CallToolResult) models.ToolResult {
	if result == nil {
		return models.ToolResult{Content: nil}
	}

	parts := make([]any, 0, len(result.Content))

	for _, block := range result.Content {
		if text, ok := block.(mcp.TextContent); ok {
			parts = append(parts, parseLoose(text.Text))

			continue
		}

		parts = append(parts, jsonSafe(block))
	}

	normalized := models.ToolResult{IsError: result.IsError}

	switch len(parts) {
	case 0:
		normalized.Content = nil
	case 1:
		normalized.Content = parts[0]
	default:
		normalized.Content = parts
	}

	return normalized
}

// parseLoose decodes text that is itself JSON, which is how most MCP servers
// return structured payloads. Plain text passes through untouched.
func parseLoose(text string) any {
	trimmed := text

	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}

	return text
}

// jsonSafe coerces an arbitrary value into JSON-native types via a
// marshal/unmarshal round trip. Values that cannot marshal degrade to their
// fmt representation instead of failing the call.
func jsonSafe(v any) any {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return string(encoded)
	}

	return decoded
}
