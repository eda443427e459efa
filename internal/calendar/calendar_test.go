package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	start := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	ev := model.Event{
		ID:          "e1",
		Title:       "Stadtführung",
		Description: "Treffpunkt am Rathaus",
		Date:        start,
		Room:        "Foyer",
		Address:     "Markt 1, Lübeck",
	}

	out := Export(ev, "https://example.org/")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	ve := events[0]
	assert.Equal(t, "e1@eventbocker", ve.Id())
	assert.Equal(t, "Stadtführung", ve.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "https://example.org/events/e1", ve.GetProperty(ical.ComponentPropertyUrl).Value)

	got, err := ve.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(got))

	end, err := ve.GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, DefaultDuration, end.Sub(got))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "Foyer, Markt 1", location(model.Event{Room: "Foyer", Address: " Markt 1 "}))
	assert.Equal(t, "Markt 1", location(model.Event{Address: "Markt 1"}))
	assert.Empty(t, location(model.Event{}))
}

func TestExport_OmitsEmptyFields(t *testing.T) {
	out := Export(model.Event{ID: "e2", Title: "Lesung", Date: time.Now()}, "")
	assert.NotContains(t, out, "LOCATION")
	assert.NotContains(t, out, "URL")
	assert.NotContains(t, out, "DESCRIPTION")
}
