// Package eventbus publishes gateway lifecycle events to a message channel.
package eventbus

import (
	"context"

	"github.com/dukex/tunnelgate/pkg/events"
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
}

// NoopEventBus drops every event. It backs the "none" provider.
type NoopEventBus struct{}

func (NoopEventBus) Publish(context.Context, string, Event) error { return nil }
func (NoopEventBus) Handle(events.EventType, EventHandler) error  { return nil }
func (NoopEventBus) Subscribe(context.Context) error              { return nil }
func (NoopEventBus) Close() error                                 { return nil }
