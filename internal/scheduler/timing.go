package scheduler

import (
	"fmt"
	"time"
)

// DefaultReminderHour is the local hour at which reminders go out.
const DefaultReminderHour = 18

// ReminderTime returns hour:00 local time on the day before the event.
func ReminderTime(eventDate time.Time, loc *time.Location, hour int) time.Time {
	d := eventDate.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day()-1, hour, 0, 0, 0, loc)
}

// JobID derives the reminder job ID for a booking. It is stable across
// restarts, which makes reconciliation idempotent.
func JobID(eventID, bookingID string) string {
	return fmt.Sprintf("reminder_event_%s_booking_%s", eventID, bookingID)
}
