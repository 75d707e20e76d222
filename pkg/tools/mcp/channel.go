// Package mcp adapts an MCP server into the tools.Channel interface.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/graviton-studio/logos/pkg/models"
)

const (
	protocolVersion = "2024-11-05"
	listTimeout     = 5 * time.Second
	callTimeout     = 60 * time.Second
)

// Channel talks to a single MCP server over SSE or stdio.
type Channel struct {
	client *client.Client
	logger *slog.Logger
}

// NewSSEChannel connects to an MCP server over HTTP server-sent events.
// The API key, when set, is sent as a bearer token.
func NewSSEChannel(ctx context.Context, serverURL, apiKey string, logger *slog.Logger) (*Channel, error) {
	var options []transport.ClientOption
	if apiKey != "" {
		options = append(options, transport.WithHeaders(map[string]string{
			"Authorization": "Bearer " + apiKey,
		}))
	}

	mcpClient, err := client.NewSSEMCPClient(serverURL, options...)
	if err != nil {
		return nil, fmt.Errorf("creating MCP client for %s: %w", serverURL, err)
	}

	return initialize(ctx, mcpClient, logger)
}

// NewStdioChannel launches an MCP server as a subprocess.
func NewStdioChannel(ctx context.Context, command string, args []string, logger *slog.Logger) (*Channel, error) {
	mcpClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, fmt.Errorf("creating MCP client for %s: %w", command, err)
	}

	return initialize(ctx, mcpClient, logger)
}

func initialize(ctx context.Context, mcpClient *client.Client, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "logos",
		Version: "1.0.0",
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initializing MCP client: %w", err)
	}

	return &Channel{
		client: mcpClient,
		logger: logger.With("module", "mcp"),
	}, nil
}

func (c *Channel) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	result, err := c.client.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}

	descriptors := make([]models.ToolDescriptor, 0, len(result.Tools))

	for _, tool := range result.Tools {
		descriptors = append(descriptors, models.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaMap(tool.InputSchema),
		})
	}

	return descriptors, nil
}

func (c *Channel) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	c.logger.Debug("Calling MCP tool", "tool", name)

	return c.client.CallTool(callCtx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

func (c *Channel) Close() error {
	return c.client.Close()
}

// schemaMap flattens the typed MCP schema into the generic map form the
// gateway validates against.
func schemaMap(schema mcp.ToolInputSchema) map[string]any {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil
	}

	return decoded
}
