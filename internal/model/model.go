// Package model defines the core domain types for the event booking system.
package model

import "time"

// Event represents a bookable event created by an administrator.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
	Room        string    `json:"room,omitempty"`
	Address     string    `json:"address,omitempty"`
	IsVisible   bool      `json:"is_visible"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

// Remaining returns the number of available seats.
func (e *Event) Remaining() int {
	return e.Capacity - e.BookedCount
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.BookedCount >= e.Capacity
}

// Booking is a visitor's seat reservation. It is owned by its Event.
type Booking struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Registrant holds the contact details submitted with a booking.
type Registrant struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=120"`
	Phone string `json:"phone" validate:"required,max=20"`
}

// EventInput is the payload for creating or updating an event.
type EventInput struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
	Capacity    int       `json:"capacity" validate:"gt=0,lte=100000"`
	Room        string    `json:"room" validate:"max=100"`
	Address     string    `json:"address" validate:"max=200"`
	IsVisible   *bool     `json:"is_visible"`
	Price       float64   `json:"price" validate:"gte=0"`
}

// JobState is the lifecycle state of a scheduled reminder.
type JobState string

const (
	JobPending   JobState = "pending"
	JobFired     JobState = "fired"
	JobCancelled JobState = "cancelled"
)

// ReminderJob is a one-shot reminder scheduled for a single booking.
// EventID and BookingID are weak references; either may be gone by FireAt.
type ReminderJob struct {
	JobID      string     `db:"job_id" json:"job_id"`
	EventID    string     `db:"event_id" json:"event_id"`
	BookingID  string     `db:"booking_id" json:"booking_id"`
	Recipient  string     `db:"recipient" json:"recipient"`
	FireAt     time.Time  `db:"fire_at" json:"fire_at"`
	State      JobState   `db:"state" json:"state"`
	Reason     string     `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// SchedulerStatus is the read model exposed on the admin surface.
type SchedulerStatus struct {
	Status   string `json:"status"`
	Enabled  bool   `json:"enabled"`
	JobCount int    `json:"job_count"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// BookingResult summarises the outcome of a single reservation attempt.
// Used by the concurrent test harnesses.
type BookingResult struct {
	Email   string
	Success bool
	Error   error
}
