package cmd

import (
	"log/slog"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/eventbus"
)

// NewEventBus picks the event bus provider: kafka when brokers are
// configured, the in-process gochannel bus otherwise.
func NewEventBus(logger *slog.Logger, cfg *config.Config) (eventbus.EventBus, error) {
	provider := "gochannel"
	if cfg.KafkaBrokers != "" {
		provider = "kafka"
	}

	return eventbus.NewEventBus(provider, logger)
}
