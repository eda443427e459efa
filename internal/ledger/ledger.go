// Package ledger reserves seats and sends the booking emails inside the same
// transaction: no email without a booking, no booking without an email.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/hanse-dev/eventbocker/internal/notify"
	"github.com/hanse-dev/eventbocker/internal/repository"
	"github.com/hanse-dev/eventbocker/internal/service"
	"github.com/rs/zerolog"
)

// NotificationError means a booking email could not be sent and the
// reservation was rolled back.
type NotificationError struct {
	Kind notify.Kind
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("booking rolled back, %s email failed: %v", e.Kind, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Booker runs the locked reservation transaction.
type Booker interface {
	Book(ctx context.Context, eventID string, reg model.Registrant, opts repository.BookOptions) (*model.Booking, error)
}

// Notifier sends the booking emails.
type Notifier interface {
	Send(ctx context.Context, kind notify.Kind, recipients []string, data notify.Data) error
	SendAdminNotification(ctx context.Context, data notify.Data) error
}

// Publisher announces committed bookings.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, booking model.Booking) error
}

// Ledger is the booking entry point.
type Ledger struct {
	bookings    Booker
	notifier    Notifier
	publisher   Publisher
	uniqueEmail bool
	logger      zerolog.Logger
}

// New constructs a Ledger. publisher may be nil.
func New(bookings Booker, notifier Notifier, publisher Publisher, cfg config.BookingConfig, logger zerolog.Logger) *Ledger {
	return &Ledger{
		bookings:    bookings,
		notifier:    notifier,
		publisher:   publisher,
		uniqueEmail: cfg.UniqueEmail,
		logger:      logger.With().Str("component", "ledger").Logger(),
	}
}

// Reserve books one seat for reg.
//
// The registration confirmation and the admin notice are sent while the
// event row is locked. If either fails the booking is rolled back and a
// *NotificationError is returned.
func (l *Ledger) Reserve(ctx context.Context, eventID string, reg model.Registrant) (*model.Booking, error) {
	reg = service.NormalizeRegistrant(reg)
	if err := service.Validate(reg); err != nil {
		return nil, err
	}
	if eventID == "" {
		return nil, &service.ValidationError{Fields: map[string]string{"event_id": "is required"}}
	}

	booking, err := l.bookings.Book(ctx, eventID, reg, repository.BookOptions{
		UniqueEmail:  l.uniqueEmail,
		BeforeCommit: l.notify,
	})
	if err != nil {
		var notifyErr *NotificationError
		switch {
		case errors.As(err, &notifyErr):
			l.logger.Error().Err(err).Str("event_id", eventID).Msg("booking rolled back")
			return nil, err
		case errors.Is(err, repository.ErrNotFound),
			errors.Is(err, repository.ErrEventFull),
			errors.Is(err, repository.ErrAlreadyRegistered):
			// Surface domain errors directly so handlers can set correct HTTP status.
			return nil, err
		default:
			return nil, fmt.Errorf("reserve seat: %w", err)
		}
	}

	l.logger.Info().
		Str("event_id", eventID).
		Str("booking_id", booking.ID).
		Msg("booking confirmed")

	if l.publisher != nil {
		if err := l.publisher.PublishBookingConfirmed(ctx, *booking); err != nil {
			l.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("failed to publish booking confirmed")
		}
	}
	return booking, nil
}

func (l *Ledger) notify(ctx context.Context, event model.Event, booking model.Booking) error {
	data := notify.Data{Event: &event, Booking: &booking}

	if err := l.notifier.Send(ctx, notify.RegistrationConfirmation, []string{booking.Email}, data); err != nil {
		return &NotificationError{Kind: notify.RegistrationConfirmation, Err: err}
	}
	if err := l.notifier.SendAdminNotification(ctx, data); err != nil {
		return &NotificationError{Kind: notify.AdminNotification, Err: err}
	}
	return nil
}
