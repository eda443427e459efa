package repository_test

import (
	"context"
	"testing"

	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/hanse-dev/eventbocker/internal/repository"
	"github.com/stretchr/testify/assert"
)

// Malformed ids are answered before any query, so no pool is needed.
func TestMalformedIDs_AreNotFound(t *testing.T) {
	ctx := context.Background()
	events := repository.NewEventRepository(nil)
	bookings := repository.NewBookingRepository(nil)

	for _, id := range []string{"abc", "", "1234", "00000000-0000-0000-0000-00000000000g"} {
		t.Run(id, func(t *testing.T) {
			_, err := events.GetByID(ctx, id)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			_, err = events.Update(ctx, model.Event{ID: id})
			assert.ErrorIs(t, err, repository.ErrNotFound)

			_, err = events.ToggleVisibility(ctx, id)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			assert.ErrorIs(t, events.Delete(ctx, id), repository.ErrNotFound)

			_, err = bookings.Book(ctx, id, model.Registrant{Name: "x", Email: "x@example.com"}, repository.BookOptions{})
			assert.ErrorIs(t, err, repository.ErrNotFound)

			_, err = bookings.GetByID(ctx, id)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			_, err = bookings.ListByEvent(ctx, id)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			assert.ErrorIs(t, bookings.Delete(ctx, id), repository.ErrNotFound)
		})
	}
}
