// Package calendar exports events as iCalendar documents.
package calendar

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/hanse-dev/eventbocker/internal/model"
)

// DefaultDuration is used for DTEND since events only carry a start time.
const DefaultDuration = 2 * time.Hour

const productID = "-//eventbocker//events//DE"

// Export renders a single event as an ICS file. baseURL, when set, is used to
// link back to the event page.
func Export(ev model.Event, baseURL string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	ve := cal.AddEvent(ev.ID + "@eventbocker")
	ve.SetDtStampTime(time.Now().UTC())
	if !ev.CreatedAt.IsZero() {
		ve.SetCreatedTime(ev.CreatedAt.UTC())
	}
	ve.SetStartAt(ev.Date.UTC())
	ve.SetEndAt(ev.Date.Add(DefaultDuration).UTC())
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if loc := location(ev); loc != "" {
		ve.SetLocation(loc)
	}
	if baseURL != "" {
		ve.SetURL(strings.TrimRight(baseURL, "/") + "/events/" + ev.ID)
	}

	return cal.Serialize()
}

func location(ev model.Event) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{ev.Room, ev.Address} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
