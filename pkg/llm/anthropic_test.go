package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graviton-studio/logos/pkg/models"
)

func newTestChannel(t *testing.T, handler http.HandlerFunc) *AnthropicChannel {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	channel := NewAnthropicChannel("test-key", "test-model")
	channel.baseURL = server.URL

	return channel
}

func TestCompleteMapsReplyBlocks(t *testing.T) {
	var captured anthropicRequest

	channel := newTestChannel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "searching now"},
				{"type": "tool_use", "id": "call_1", "name": "exa_search", "input": map[string]any{"query": "go"}},
			},
		})
	})

	blocks, err := channel.Complete(context.Background(), "system prompt",
		[]Message{{Role: RoleUser, Content: "find go articles"}},
		[]models.ToolDescriptor{{Name: "exa_search", Description: "search the web"}})
	require.NoError(t, err)

	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, "system prompt", captured.System)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "exa_search", captured.Tools[0].Name)
	assert.NotNil(t, captured.Tools[0].InputSchema)

	require.Len(t, blocks, 2)
	assert.Equal(t, BlockTypeText, blocks[0].Type)
	assert.Equal(t, "searching now", blocks[0].Text)
	assert.Equal(t, BlockTypeToolUse, blocks[1].Type)
	assert.Equal(t, "call_1", blocks[1].ID)
	assert.Equal(t, map[string]any{"query": "go"}, blocks[1].Args)
}

func TestCompleteSendsToolResultBlocks(t *testing.T) {
	var raw map[string]any

	channel := newTestChannel(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &raw))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "done"}},
		})
	})

	_, err := channel.Complete(context.Background(), "", []Message{
		{Role: RoleUser, Content: "go"},
		{Role: RoleAssistant, Content: []ContentBlock{
			{Type: BlockTypeToolUse, ID: "call_1", Name: "exa_search", Args: map[string]any{"query": "go"}},
		}},
		{Role: RoleUser, Content: []ToolResultBlock{
			{ToolUseID: "call_1", Content: "upstream exploded", IsError: true},
		}},
	}, nil)
	require.NoError(t, err)

	messages, ok := raw["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)

	last, ok := messages[2].(map[string]any)
	require.True(t, ok)

	blocks, ok := last["content"].([]any)
	require.True(t, ok)
	require.Len(t, blocks, 1)

	result, ok := blocks[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "call_1", result["tool_use_id"])
	assert.Equal(t, true, result["is_error"])
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	channel := newTestChannel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "slow down"}}`))
	})

	_, err := channel.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSummarizeConcatenatesTextBlocks(t *testing.T) {
	channel := newTestChannel(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &req))

		assert.Equal(t, summaryMaxTokens, req.MaxTokens)
		assert.Empty(t, req.Tools)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "part one. "},
				{"type": "text", "text": "part two."},
			},
		})
	})

	summary, err := channel.Summarize(context.Background(), "summarize this", "a very long chunk")
	require.NoError(t, err)
	assert.Equal(t, "part one. part two.", summary)
}
