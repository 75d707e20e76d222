// Package cmd carries the shared wiring helpers used by the logos commands.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/persistence"
	"github.com/graviton-studio/logos/pkg/persistence/file"
	"github.com/graviton-studio/logos/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend from the configuration:
// a postgres database URL wins over a file data path, and with neither the
// engine runs unpersisted. A nil return is a valid degraded mode.
func NewPersistence(ctx context.Context, logger *slog.Logger, cfg *config.Config) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, cfg.DatabaseURL)
	case cfg.DataPath != "":
		return file.NewPersistence(cfg.DataPath), nil
	case cfg.DatabaseURL != "":
		// Unrecognized scheme, treat it as a file root.
		return file.NewPersistence(cfg.DatabaseURL), nil
	default:
		logger.Warn("No persistence configured, executions will not be recorded")

		return nil, nil
	}
}
