// Package cmd holds constructors shared by the gateway's commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/tunnelgate/pkg/channels/gochannel"
	"github.com/dukex/tunnelgate/pkg/channels/kafka"
	"github.com/dukex/tunnelgate/pkg/eventbus"
	"github.com/dukex/tunnelgate/pkg/events"
)

const (
	EventBusNone      = "none"
	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// NewEventBus builds the invocation event bus. The in-process provider also
// subscribes an audit logger so events are visible without a broker.
func NewEventBus(ctx context.Context, provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", EventBusNone:
		return eventbus.NoopEventBus{}, nil
	case EventBusGoChannel:
		channel := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		bus := eventbus.NewWatermillEventBus(channel, channel)

		if err := subscribeAudit(ctx, bus, logger); err != nil {
			_ = bus.Close()

			return nil, err
		}

		return bus, nil
	case EventBusKafka:
		pub, err := kafka.CreatePublisher(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, provider)
	}
}

func subscribeAudit(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	audit := logger.With("module", "audit")

	err := bus.Handle(events.InvocationFinishedEvent, func(ctx context.Context, event any) error {
		finished, ok := event.(*events.InvocationFinished)
		if !ok {
			return nil
		}

		audit.InfoContext(ctx, "Invocation finished",
			"invocation_id", finished.InvocationID,
			"account_kind", finished.AccountKind,
			"operation", finished.Operation,
			"state", finished.State,
			"result", finished.Result,
			"exit_code", finished.ExitCode,
			"duration", finished.Duration,
		)

		return nil
	})
	if err != nil {
		return err
	}

	err = bus.Handle(events.InvocationRejectedEvent, func(ctx context.Context, event any) error {
		rejected, ok := event.(*events.InvocationRejected)
		if !ok {
			return nil
		}

		audit.WarnContext(ctx, "Invocation rejected",
			"account_kind", rejected.AccountKind,
			"operation", rejected.Operation,
			"reason", rejected.Reason,
		)

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
