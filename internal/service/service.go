// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/hanse-dev/eventbocker/internal/repository"
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is not a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// NormalizeRegistrant trims the registrant fields and lowercases the email.
func NormalizeRegistrant(reg model.Registrant) model.Registrant {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.Phone = strings.TrimSpace(reg.Phone)
	return reg
}

// EventStore is the persistence the service needs for events.
type EventStore interface {
	Create(ctx context.Context, e model.Event) (*model.Event, error)
	Insert(ctx context.Context, e model.Event) error
	InsertAll(ctx context.Context, events []model.Event, bookings []model.Booking) error
	Update(ctx context.Context, e model.Event) (*model.Event, error)
	ToggleVisibility(ctx context.Context, id string) (*model.Event, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Event, error)
	ListUpcoming(ctx context.Context, after time.Time, includeInvisible bool) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// BookingStore is the persistence the service needs for bookings.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error)
	Delete(ctx context.Context, id string) error
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events   EventStore
	bookings BookingStore
	now      func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, bookings BookingStore) *EventService {
	return &EventService{events: events, bookings: bookings, now: time.Now}
}

// CreateEvent validates the request and delegates to the repository.
func (s *EventService) CreateEvent(ctx context.Context, in model.EventInput) (*model.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := Validate(in); err != nil {
		return nil, err
	}
	visible := true
	if in.IsVisible != nil {
		visible = *in.IsVisible
	}
	return s.events.Create(ctx, model.Event{
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Capacity:    in.Capacity,
		Room:        in.Room,
		Address:     in.Address,
		IsVisible:   visible,
		Price:       in.Price,
	})
}

// UpdateEvent replaces the editable fields of an existing event. Capacity may
// not drop below the seats already booked.
func (s *EventService) UpdateEvent(ctx context.Context, id string, in model.EventInput) (*model.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := Validate(in); err != nil {
		return nil, err
	}
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Capacity < current.BookedCount {
		return nil, &ValidationError{Fields: map[string]string{
			"capacity": fmt.Sprintf("must be at least the %d seats already booked", current.BookedCount),
		}}
	}

	updated := *current
	updated.Title = in.Title
	updated.Description = in.Description
	updated.Date = in.Date
	updated.Capacity = in.Capacity
	updated.Room = in.Room
	updated.Address = in.Address
	updated.Price = in.Price
	if in.IsVisible != nil {
		updated.IsVisible = *in.IsVisible
	}
	return s.events.Update(ctx, updated)
}

// CopyEvent duplicates an event as "Copy of <title>" with no bookings.
func (s *EventService) CopyEvent(ctx context.Context, id string) (*model.Event, error) {
	src, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *src
	cp.Title = truncateRunes("Copy of "+src.Title, maxTitleLen)
	return s.events.Create(ctx, cp)
}

// maxTitleLen matches VARCHAR(100) and the validator tag, both counted in
// characters.
const maxTitleLen = 100

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ToggleVisibility flips whether an event is listed publicly.
func (s *EventService) ToggleVisibility(ctx context.Context, id string) (*model.Event, error) {
	return s.events.ToggleVisibility(ctx, id)
}

// DeleteEvent removes an event and its bookings. Scheduled reminders are
// left in place and cancel themselves when they fire.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	return s.events.Delete(ctx, id)
}

// InsertEvent writes an event as-is, keeping its ID and BookedCount. Bulk
// restore passes skipValidation to accept historical rows.
func (s *EventService) InsertEvent(ctx context.Context, ev model.Event, skipValidation bool) error {
	if !skipValidation {
		if err := validateStored(ev); err != nil {
			return err
		}
	}
	return s.events.Insert(ctx, ev)
}

// RestoreEvents writes events and their bookings in a single transaction.
// BookedCount is taken as given and must equal the bookings per event.
func (s *EventService) RestoreEvents(ctx context.Context, events []model.Event, bookings []model.Booking, skipValidation bool) error {
	if !skipValidation {
		for _, ev := range events {
			if err := validateStored(ev); err != nil {
				return err
			}
		}
	}
	return s.events.InsertAll(ctx, events, bookings)
}

func validateStored(ev model.Event) error {
	in := model.EventInput{
		Title:    ev.Title,
		Date:     ev.Date,
		Capacity: ev.Capacity,
		Room:     ev.Room,
		Address:  ev.Address,
		Price:    ev.Price,
	}
	if err := Validate(in); err != nil {
		return err
	}
	if ev.BookedCount > ev.Capacity {
		return &ValidationError{Fields: map[string]string{"booked_count": "exceeds capacity"}}
	}
	return nil
}

// ListEvents returns every event, past and hidden ones included.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// ListUpcomingEvents returns future events. Hidden events are only included
// when includeInvisible is set.
func (s *EventService) ListUpcomingEvents(ctx context.Context, includeInvisible bool) ([]model.Event, error) {
	return s.events.ListUpcoming(ctx, s.now(), includeInvisible)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, &ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListBookings returns all bookings for an event.
func (s *EventService) ListBookings(ctx context.Context, eventID string) ([]model.Booking, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.bookings.ListByEvent(ctx, eventID)
}

// DeleteBooking removes a booking and frees its seat.
func (s *EventService) DeleteBooking(ctx context.Context, id string) error {
	return s.bookings.Delete(ctx, id)
}
