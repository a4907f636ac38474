package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/calvere/docflow/pkg/channels/gochannel"
	"github.com/calvere/docflow/pkg/channels/kafka"
	"github.com/calvere/docflow/pkg/eventbus"
)

// NewEventBus creates the lifecycle event bus for the given provider. An
// empty provider or "none" disables event publishing.
func NewEventBus(provider, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "none":
		return eventbus.NewNoopEventBus(), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}
