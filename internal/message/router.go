package message

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// ReminderScheduler creates the reminder job for a confirmed booking.
type ReminderScheduler interface {
	ScheduleBooking(ctx context.Context, eventID, bookingID string) (bool, error)
}

// RouterDeps are the collaborators of the message handlers.
type RouterDeps struct {
	Logger     zerolog.Logger
	Subscriber message.Subscriber
	Scheduler  ReminderScheduler
}

// Router runs the event handlers.
type Router struct {
	*message.Router
}

// NewRouter builds a router with the middleware stack and the
// schedule-reminder handler registered.
func NewRouter(deps RouterDeps) (*Router, error) {
	logger := NewLoggerAdapter(deps.Logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}
	addMiddlewares(router, deps.Logger, logger)

	ep, err := cqrs.NewEventProcessorWithConfig(router, cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return deps.Subscriber, nil
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: marshaler,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event processor: %w", err)
	}

	if err := ep.AddHandlers(
		cqrs.NewEventHandler("schedule-reminder", handleScheduleReminder(deps.Scheduler)),
	); err != nil {
		return nil, fmt.Errorf("adding handlers: %w", err)
	}

	return &Router{router}, nil
}

func handleScheduleReminder(s ReminderScheduler) func(ctx context.Context, event *BookingConfirmed) error {
	return func(ctx context.Context, event *BookingConfirmed) error {
		created, err := s.ScheduleBooking(ctx, event.EventID, event.BookingID)
		if err != nil {
			return fmt.Errorf("schedule reminder for booking %s: %w", event.BookingID, err)
		}
		zerolog.Ctx(ctx).Debug().
			Str("booking_id", event.BookingID).
			Bool("created", created).
			Msg("Reminder scheduled")
		return nil
	}
}

var marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

