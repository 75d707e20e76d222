package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeSingleTextBlock(t *testing.T) {
	result := Normalize(mcp.NewToolResultText("hello world"))

	assert.Equal(t, "hello world", result.Content)
	assert.False(t, result.IsError)
}

func TestNormalizeParsesJSONText(t *testing.T) {
	result := Normalize(mcp.NewToolResultText(`{"messages": [{"id": "m1"}], "count": 1}`))

	content, ok := result.Content.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, float64(1), content["count"])
}

func TestNormalizeMultipleBlocks(t *testing.T) {
	result := Normalize(&mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "first"},
			mcp.TextContent{Type: "text", Text: "second"},
		},
	})

	assert.Equal(t, []any{"first", "second"}, result.Content)
}

func TestNormalizeErrorResult(t *testing.T) {
	result := Normalize(mcp.NewToolResultError("upstream timed out"))

	assert.True(t, result.IsError)
	assert.Equal(t, "upstream timed out", result.Content)
}

func TestNormalizeCoercesStructs(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	result := Normalize(payload{Name: "inbox", Count: 3})

	content, ok := result.Content.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "inbox", content["name"])
	assert.Equal(t, float64(3), content["count"])
}

func TestNormalizeNil(t *testing.T) {
	assert.Nil(t, Normalize(nil).Content)
}
