// Package repository implements all database queries for events and bookings.
// It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrAlreadyRegistered is returned when the same email books an event twice.
var ErrAlreadyRegistered = errors.New("email already registered for this event")

const eventColumns = `id, title, description, date, capacity, booked_count, room, address, is_visible, price, created_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Capacity, &e.BookedCount,
		&e.Room, &e.Address, &e.IsVisible, &e.Price, &e.CreatedAt)
	return e, err
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// validID reports whether id can name a row. Ids are UUID columns, so
// anything else cannot exist and would otherwise fail with 22P02.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Create inserts a new event with a generated UUID and zero bookings.
func (r *EventRepository) Create(ctx context.Context, e model.Event) (*model.Event, error) {
	e.ID = uuid.New().String()
	e.BookedCount = 0
	e.CreatedAt = time.Now().UTC()
	if err := r.Insert(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert writes the event exactly as given, including ID and BookedCount.
func (r *EventRepository) Insert(ctx context.Context, e model.Event) error {
	return insertEvent(ctx, r.db, e)
}

func insertEvent(ctx context.Context, db execer, e model.Event) error {
	_, err := db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Title, e.Description, e.Date, e.Capacity, e.BookedCount,
		e.Room, e.Address, e.IsVisible, e.Price, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of an event. BookedCount is untouched.
func (r *EventRepository) Update(ctx context.Context, e model.Event) (*model.Event, error) {
	if !validID(e.ID) {
		return nil, ErrNotFound
	}
	row := r.db.QueryRow(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date = $4, capacity = $5,
		     room = $6, address = $7, is_visible = $8, price = $9
		 WHERE id = $1
		 RETURNING `+eventColumns,
		e.ID, e.Title, e.Description, e.Date, e.Capacity, e.Room, e.Address, e.IsVisible, e.Price,
	)
	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return &updated, nil
}

// ToggleVisibility flips is_visible and returns the updated event.
func (r *EventRepository) ToggleVisibility(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	row := r.db.QueryRow(ctx,
		`UPDATE events SET is_visible = NOT is_visible WHERE id = $1 RETURNING `+eventColumns,
		id,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("toggle visibility: %w", err)
	}
	return &e, nil
}

// Delete removes an event; its bookings are removed by the cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all events ordered by date.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// ListUpcoming returns events after the given time, optionally including hidden ones.
func (r *EventRepository) ListUpcoming(ctx context.Context, after time.Time, includeInvisible bool) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE date > $1 AND (is_visible OR $2)
		 ORDER BY date ASC`,
		after, includeInvisible,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return collectEvents(rows)
}

// ListBetween returns events with from < date <= to, regardless of visibility.
func (r *EventRepository) ListBetween(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE date > $1 AND date <= $2
		 ORDER BY date ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list events in window: %w", err)
	}
	return collectEvents(rows)
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// InsertAll writes events and bookings verbatim in one transaction. Either
// every row is stored or none is.
func (r *EventRepository) InsertAll(ctx context.Context, events []model.Event, bookings []model.Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range events {
		if err := insertEvent(ctx, tx, e); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	for _, b := range bookings {
		if err := insertBooking(ctx, tx, b); err != nil {
			return fmt.Errorf("booking %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
