// Package cmd builds the shared infrastructure used by the canvasblocks commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/canvasblocks/pkg/channels/gochannel"
	"github.com/dukex/canvasblocks/pkg/channels/kafka"
	"github.com/dukex/canvasblocks/pkg/eventbus"
)

// NewEventBus creates the event bus for provider: "gochannel" (in process, the default)
// or "kafka".
func NewEventBus(provider string, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, err
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.Config{
			Brokers:     kafka.ParseBrokers(brokers),
			ServiceName: "canvasblocks",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
