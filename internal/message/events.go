// Package message carries booking events from the ledger to the reminder
// scheduler over watermill.
package message

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// Header is carried by every event.
type Header struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

// NewHeader returns a header with a fresh ID stamped now.
func NewHeader() Header {
	return Header{
		ID:          watermill.NewUUID(),
		PublishedAt: time.Now().UTC(),
	}
}

// BookingConfirmed is published once a booking transaction has committed.
type BookingConfirmed struct {
	Header    Header `json:"header"`
	BookingID string `json:"booking_id"`
	EventID   string `json:"event_id"`
}
