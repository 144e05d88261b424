// Package eventbus publishes and consumes run lifecycle events over watermill.
package eventbus

import (
	"context"
	"errors"

	"github.com/dukex/canvasblocks/pkg/events"
)

var ErrNilHandler = errors.New("nil event handler")

// Event is anything carrying its own event type, the run and script events in pkg/events.
type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends event; key groups the events of one canvas on partitioned brokers.
	Publish(ctx context.Context, key string, event Event) error
}

// Handler receives the decoded event, a pointer to one of the pkg/events structs. A
// returned error nacks the message so the broker redelivers it.
type Handler func(ctx context.Context, event any) error

type EventSubscriber interface {
	Handle(eventType events.EventType, handler Handler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
