// Package backup dumps events and bookings to JSON and restores them under
// fresh IDs.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/rs/zerolog"
)

const FormatVersion = 1

// ErrOverbooked rejects a snapshot whose bookings exceed an event's capacity.
var ErrOverbooked = errors.New("snapshot overbooks an event")

// Snapshot is the on-disk backup document.
type Snapshot struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Events    []model.Event   `json:"events"`
	Bookings  []model.Booking `json:"bookings"`
}

// Source reads the data to back up.
type Source interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListBookings(ctx context.Context, eventID string) ([]model.Booking, error)
}

// Sink stores a restored snapshot. RestoreEvents must write all rows or
// none.
type Sink interface {
	RestoreEvents(ctx context.Context, events []model.Event, bookings []model.Booking, skipValidation bool) error
}

// Result counts what a restore wrote and skipped.
type Result struct {
	Events          int `json:"events"`
	Bookings        int `json:"bookings"`
	SkippedBookings int `json:"skipped_bookings"`
}

// Write serialises every event with its bookings to w.
func Write(ctx context.Context, src Source, w io.Writer, logger zerolog.Logger) error {
	events, err := src.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	snap := Snapshot{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Events:    events,
		Bookings:  []model.Booking{},
	}
	for _, ev := range events {
		bookings, err := src.ListBookings(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("list bookings for %s: %w", ev.ID, err)
		}
		snap.Bookings = append(snap.Bookings, bookings...)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	logger.Info().
		Int("events", len(snap.Events)).
		Int("bookings", len(snap.Bookings)).
		Msg("Backup written")
	return nil
}

// Restore reads a snapshot from r and writes it through dst in one call.
// Events and bookings get new IDs. Bookings whose event is not part of the
// snapshot are skipped. BookedCount is recomputed from the restored bookings,
// and a snapshot with more bookings than seats for an event is rejected
// before anything is written.
func Restore(ctx context.Context, dst Sink, r io.Reader, logger zerolog.Logger) (Result, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Result{}, fmt.Errorf("decode backup: %w", err)
	}
	if snap.Version > FormatVersion {
		return Result{}, fmt.Errorf("backup version %d is newer than supported %d", snap.Version, FormatVersion)
	}

	var res Result
	now := time.Now().UTC()

	events := make([]model.Event, 0, len(snap.Events))
	index := make(map[string]int, len(snap.Events))
	for _, ev := range snap.Events {
		index[ev.ID] = len(events)
		ev.ID = uuid.NewString()
		ev.BookedCount = 0
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		events = append(events, ev)
	}

	bookings := make([]model.Booking, 0, len(snap.Bookings))
	for _, b := range snap.Bookings {
		i, ok := index[b.EventID]
		if !ok {
			logger.Warn().Str("booking_id", b.ID).Str("event_id", b.EventID).Msg("Skipping booking without restored event")
			res.SkippedBookings++
			continue
		}
		b.ID = uuid.NewString()
		b.EventID = events[i].ID
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		events[i].BookedCount++
		bookings = append(bookings, b)
	}

	for oldID, i := range index {
		if ev := events[i]; ev.BookedCount > ev.Capacity {
			return Result{}, fmt.Errorf("%w: event %s has %d bookings for %d seats",
				ErrOverbooked, oldID, ev.BookedCount, ev.Capacity)
		}
	}

	if err := dst.RestoreEvents(ctx, events, bookings, true); err != nil {
		return Result{}, fmt.Errorf("restore: %w", err)
	}
	res.Events = len(events)
	res.Bookings = len(bookings)

	logger.Info().
		Int("events", res.Events).
		Int("bookings", res.Bookings).
		Int("skipped_bookings", res.SkippedBookings).
		Msg("Restore complete")
	return res, nil
}
