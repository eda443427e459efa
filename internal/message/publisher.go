package message

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/hanse-dev/eventbocker/internal/model"
)

// NewPubSub returns the in-process channel used as both publisher and
// subscriber. Messages published while nobody subscribes are dropped.
func NewPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)
}

// EventPublisher publishes domain events on the cqrs event bus.
type EventPublisher struct {
	bus *cqrs.EventBus
}

// NewEventPublisher wraps pub in a correlation-aware cqrs event bus.
func NewEventPublisher(pub message.Publisher, logger watermill.LoggerAdapter) (*EventPublisher, error) {
	bus, err := cqrs.NewEventBusWithConfig(CorrelationPublisherDecorator{Publisher: pub}, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: marshaler,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event bus: %w", err)
	}
	return &EventPublisher{bus: bus}, nil
}

// PublishBookingConfirmed announces a committed booking.
func (p *EventPublisher) PublishBookingConfirmed(ctx context.Context, b model.Booking) error {
	event := &BookingConfirmed{
		Header:    NewHeader(),
		BookingID: b.ID,
		EventID:   b.EventID,
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing BookingConfirmed: %w", err)
	}
	return nil
}
