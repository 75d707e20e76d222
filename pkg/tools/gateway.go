package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/graviton-studio/logos/pkg/models"
)

// Gateway caches the tool catalog of a Channel and validates call arguments
// before they hit the wire. An empty catalog is re-fetched at most once per
// gateway lifetime, so a flaky listing does not turn into a request storm.
type Gateway struct {
	channel Channel
	logger  *slog.Logger

	mu        sync.Mutex
	catalog   []models.ToolDescriptor
	byName    map[string]models.ToolDescriptor
	fetched   bool
	refetched bool
}

func NewGateway(channel Channel, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		channel: channel,
		logger:  logger.With("module", "tools"),
	}
}

// Catalog returns the cached tool descriptors, fetching them on first use.
func (g *Gateway) Catalog(ctx context.Context) ([]models.ToolDescriptor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.catalogLocked(ctx)
}

func (g *Gateway) catalogLocked(ctx context.Context) ([]models.ToolDescriptor, error) {
	if g.channel == nil {
		return nil, ErrToolUnavailable
	}

	if !g.fetched {
		if err := g.fetchLocked(ctx); err != nil {
			return nil, err
		}
	}

	if len(g.catalog) == 0 && !g.refetched {
		g.refetched = true

		g.logger.Warn("Tool catalog empty, re-fetching once")

		if err := g.fetchLocked(ctx); err != nil {
			return nil, err
		}
	}

	return g.catalog, nil
}

func (g *Gateway) fetchLocked(ctx context.Context) error {
	descriptors, err := g.channel.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	g.fetched = true
	g.catalog = descriptors
	g.byName = make(map[string]models.ToolDescriptor, len(descriptors))

	for _, d := range descriptors {
		g.byName[d.Name] = d
	}

	g.logger.Debug("Tool catalog fetched", "tools", len(descriptors))

	return nil
}

// Invoke executes a tool by name. Arguments are checked against the tool's
// input schema when the catalog carries one; unknown tools are still sent to
// the channel, which is the authority on what exists.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) (models.ToolResult, error) {
	if g.channel == nil {
		return models.ToolResult{}, ErrToolUnavailable
	}

	g.mu.Lock()

	if _, err := g.catalogLocked(ctx); err != nil {
		g.mu.Unlock()

		return models.ToolResult{}, err
	}

	descriptor, known := g.byName[name]

	g.mu.Unlock()

	if known && len(descriptor.InputSchema) > 0 {
		if err := validateArgs(descriptor.InputSchema, args); err != nil {
			return models.ToolResult{}, &ToolExecutionError{Tool: name, Err: err}
		}
	}

	g.logger.Debug("Invoking tool", "tool", name)

	raw, err := g.channel.CallTool(ctx, name, args)
	if err != nil {
		return models.ToolResult{}, &ToolExecutionError{Tool: name, Err: err}
	}

	return Normalize(raw), nil
}

func validateArgs(schema map[string]any, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		// Malformed schemas from the server must not block the call.
		return nil
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}

	return fmt.Errorf("invalid arguments: %s", strings.Join(messages, "; "))
}
