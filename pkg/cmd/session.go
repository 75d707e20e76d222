package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/llm"
	"github.com/graviton-studio/logos/pkg/overflow"
	"github.com/graviton-studio/logos/pkg/session"
	"github.com/graviton-studio/logos/pkg/tools"
	"github.com/graviton-studio/logos/pkg/tools/mcp"
)

// NewSession wires the model channel, tool gateway, and overflow bounder
// into a ready conversation session. The MCP channel is optional: without a
// server URL the gateway runs tool-less and tool calls fail soft.
func NewSession(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*session.Session, *tools.Gateway, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, nil, errors.New("ANTHROPIC_API_KEY is required")
	}

	model := llm.NewAnthropicChannel(cfg.AnthropicAPIKey, cfg.ClaudeModel)

	var channel tools.Channel

	if cfg.MCPServerURL != "" {
		mcpChannel, err := mcp.NewSSEChannel(ctx, cfg.MCPServerURL, cfg.MCPAPIKey, logger)
		if err != nil {
			logger.Warn("Failed to connect MCP server, continuing without tools", "error", err)
		} else {
			channel = mcpChannel
		}
	} else {
		logger.Warn("No MCP server configured, tools are unavailable")
	}

	gateway := tools.NewGateway(channel, logger)

	bounder := overflow.NewManager(model, overflow.Config{
		MaxTokens:       cfg.MaxToolResultTokens,
		AbsoluteCeiling: cfg.AbsoluteTokenCeiling,
		ChunkChars:      cfg.SummaryChunkChars,
	}, logger)

	sess := session.New(model, gateway, bounder, cfg.MaxLLMTurns, cfg.MaxToolResultTokens, logger)

	return sess, gateway, nil
}
