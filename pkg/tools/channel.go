// Package tools exposes agent tools behind a single gateway so callers
// never talk to a transport directly.
package tools

import (
	"context"

	"github.com/graviton-studio/logos/pkg/models"
)

// Channel is a transport that can list and execute tools. The MCP client
// is the default implementation; tests substitute in-memory channels.
type Channel interface {
	ListTools(ctx context.Context) ([]models.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}
