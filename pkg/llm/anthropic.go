package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/graviton-studio/logos/pkg/models"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"

	defaultModel = "claude-sonnet-4-20250514"

	// Output budget for a regular completion and for a per-chunk summary.
	completionMaxTokens = 16000
	summaryMaxTokens    = 4000
)

// AnthropicChannel implements ModelChannel against the Anthropic messages
// API. It also implements overflow.Summarizer for chunk summarization.
type AnthropicChannel struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropicChannel(apiKey, model string) *AnthropicChannel {
	if model == "" {
		model = defaultModel
	}

	return &AnthropicChannel{
		apiKey:  apiKey,
		model:   model,
		baseURL: anthropicAPIURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicContentBlock
}

type anthropicContentBlock struct {
	Type      string          `json:"type"` // text, tool_use, tool_result
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   any             `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation to the messages API and maps the reply
// back to content blocks.
func (c *AnthropicChannel) Complete(ctx context.Context, system string, messages []Message, tools []models.ToolDescriptor) ([]ContentBlock, error) {
	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: completionMaxTokens,
		System:    system,
		Messages:  make([]anthropicMessage, 0, len(messages)),
	}

	for _, msg := range messages {
		wire, err := buildMessage(msg)
		if err != nil {
			return nil, err
		}

		req.Messages = append(req.Messages, wire)
	}

	for _, tool := range tools {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		req.Tools = append(req.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	blocks := make([]ContentBlock, 0, len(resp.Content))

	for _, block := range resp.Content {
		switch block.Type {
		case BlockTypeText:
			blocks = append(blocks, ContentBlock{Type: BlockTypeText, Text: block.Text})
		case BlockTypeToolUse:
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("parse tool_use input for %s: %w", block.Name, err)
				}
			}

			blocks = append(blocks, ContentBlock{
				Type: BlockTypeToolUse,
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			})
		}
	}

	return blocks, nil
}

// Summarize runs a single tool-free completion over one content chunk.
func (c *AnthropicChannel) Summarize(ctx context.Context, prompt, chunk string) (string, error) {
	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: summaryMaxTokens,
		Messages: []anthropicMessage{
			{Role: RoleUser, Content: prompt + "\n\n" + chunk},
		},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}

	var summary string

	for _, block := range resp.Content {
		if block.Type == BlockTypeText {
			summary += block.Text
		}
	}

	return summary, nil
}

func buildMessage(msg Message) (anthropicMessage, error) {
	switch content := msg.Content.(type) {
	case string:
		return anthropicMessage{Role: msg.Role, Content: content}, nil
	case []ContentBlock:
		blocks := make([]anthropicContentBlock, 0, len(content))

		for _, b := range content {
			switch b.Type {
			case BlockTypeText:
				blocks = append(blocks, anthropicContentBlock{Type: BlockTypeText, Text: b.Text})
			case BlockTypeToolUse:
				input, err := json.Marshal(b.Args)
				if err != nil {
					return anthropicMessage{}, fmt.Errorf("marshal tool_use input for %s: %w", b.Name, err)
				}

				blocks = append(blocks, anthropicContentBlock{
					Type:  BlockTypeToolUse,
					ID:    b.ID,
					Name:  b.Name,
					Input: input,
				})
			}
		}

		return anthropicMessage{Role: msg.Role, Content: blocks}, nil
	case []ToolResultBlock:
		blocks := make([]anthropicContentBlock, 0, len(content))

		for _, r := range content {
			blocks = append(blocks, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: r.ToolUseID,
				Content:   []anthropicContentBlock{{Type: BlockTypeText, Text: r.Content}},
				IsError:   r.IsError,
			})
		}

		return anthropicMessage{Role: msg.Role, Content: blocks}, nil
	default:
		return anthropicMessage{}, fmt.Errorf("unsupported message content type %T", msg.Content)
	}
}

func (c *AnthropicChannel) send(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("API error %s: %s", resp.Error.Type, resp.Error.Message)
	}

	return &resp, nil
}
