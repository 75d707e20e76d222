// Package eventbus provides event-driven notification of execution
// lifecycle changes.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/graviton-studio/logos/pkg/channels/gochannel"
	"github.com/graviton-studio/logos/pkg/channels/kafka"
	"github.com/graviton-studio/logos/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// NewEventBus builds an event bus for the named provider: "kafka" for the
// Kafka channel, anything else for the in-memory channel.
func NewEventBus(provider string, logger *slog.Logger) (EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	if provider == "kafka" {
		publisher, subscriber, err := kafka.CreateChannel(watermillLogger, "logos")
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka channel: %w", err)
		}

		return NewWatermillEventBus(publisher, subscriber), nil
	}

	publisher, subscriber, err := gochannel.CreateChannel(watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gochannel channel: %w", err)
	}

	return NewWatermillEventBus(publisher, subscriber), nil
}
