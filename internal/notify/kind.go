// Package notify renders and delivers the transactional emails of the
// booking system.
package notify

import (
	"fmt"

	"github.com/hanse-dev/eventbocker/internal/model"
)

// Kind identifies an email type. Each kind has a subject line and a
// <kind>.txt / <kind>.html template pair.
type Kind string

const (
	RegistrationConfirmation Kind = "registration_confirmation"
	AdminNotification        Kind = "admin_notification"
	Reminder                 Kind = "reminder"
	PasswordReset            Kind = "password_reset"
)

// Data is the template context shared by all kinds. Unused fields stay zero.
type Data struct {
	Event    *model.Event
	Booking  *model.Booking
	ResetURL string
	BaseURL  string
}

// Subject returns the subject line for the kind.
func (k Kind) Subject(d Data) (string, error) {
	switch k {
	case RegistrationConfirmation:
		return "Anmeldebestätigung - " + eventTitle(d), nil
	case AdminNotification:
		return "Neue Anmeldung - " + eventTitle(d), nil
	case Reminder:
		return "Erinnerung - " + eventTitle(d), nil
	case PasswordReset:
		return "Passwort zurücksetzen", nil
	default:
		return "", fmt.Errorf("unknown email kind %q", string(k))
	}
}

func eventTitle(d Data) string {
	if d.Event == nil {
		return ""
	}
	return d.Event.Title
}
