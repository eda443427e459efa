package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BeforeCommitFunc runs inside the reservation transaction after the booking
// row is written. A non-nil error rolls the whole reservation back.
type BeforeCommitFunc func(ctx context.Context, event model.Event, booking model.Booking) error

// BookOptions tunes a single reservation.
type BookOptions struct {
	// UniqueEmail rejects a second booking with the same email for the event.
	UniqueEmail bool
	// BeforeCommit is optional.
	BeforeCommit BeforeCommitFunc
}

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// Book reserves one seat inside a single transaction.
//
// The event row is locked with SELECT … FOR UPDATE, so concurrent attempts on
// the same event are serialised until COMMIT or ROLLBACK. The lock is held
// across opts.BeforeCommit: a booking only becomes visible once its
// notification hook has succeeded.
func (r *BookingRepository) Book(ctx context.Context, eventID string, reg model.Registrant, opts BookOptions) (*model.Booking, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() { _ = tx.Rollback(ctx) }()

	// ── Step 1: Lock the event row. ───────────────────────────────────────
	event, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	// ── Step 2: Guard against overbooking. ────────────────────────────────
	if event.IsFull() {
		return nil, ErrEventFull
	}

	// ── Step 3: Check for a duplicate email. ──────────────────────────────
	if opts.UniqueEmail {
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE event_id = $1 AND lower(email) = lower($2))`,
			eventID, reg.Email,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check duplicate: %w", err)
		}
		if exists {
			return nil, ErrAlreadyRegistered
		}
	}

	// ── Step 4: Increment the counter and write the booking. ──────────────
	if _, err = tx.Exec(ctx,
		`UPDATE events SET booked_count = booked_count + 1 WHERE id = $1`,
		eventID,
	); err != nil {
		return nil, fmt.Errorf("increment booked_count: %w", err)
	}
	event.BookedCount++

	booking := model.Booking{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Name:      reg.Name,
		Email:     reg.Email,
		Phone:     reg.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err = insertBooking(ctx, tx, booking); err != nil {
		return nil, err
	}

	// ── Step 5: Notify while the lock is still held. ──────────────────────
	if opts.BeforeCommit != nil {
		if hookErr := opts.BeforeCommit(ctx, event, booking); hookErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return nil, errors.Join(hookErr, fmt.Errorf("rollback: %w", rbErr))
			}
			return nil, hookErr
		}
	}

	// ── Step 6: Commit. ───────────────────────────────────────────────────
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &booking, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertBooking(ctx context.Context, db execer, b model.Booking) error {
	_, err := db.Exec(ctx,
		`INSERT INTO bookings (id, event_id, name, email, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.EventID, b.Name, b.Email, b.Phone, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByID returns a single booking or ErrNotFound.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var b model.Booking
	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, name, email, phone, created_at FROM bookings WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.EventID, &b.Name, &b.Email, &b.Phone, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

// ListByEvent returns all bookings for a given event.
func (r *BookingRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, name, email, phone, created_at
		 FROM bookings
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.EventID, &b.Name, &b.Email, &b.Phone, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// Delete removes a booking and frees its seat. booked_count never drops below zero.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var eventID string
	err = tx.QueryRow(ctx, `DELETE FROM bookings WHERE id = $1 RETURNING event_id`, id).Scan(&eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete booking: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE events SET booked_count = GREATEST(booked_count - 1, 0) WHERE id = $1`,
		eventID,
	); err != nil {
		return fmt.Errorf("decrement booked_count: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
