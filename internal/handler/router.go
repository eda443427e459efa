package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter mounts every route on a chi router with the global middleware
// stack.
func NewRouter(h *EventHandler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(CorrelationID)
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/health", h.HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.DeleteEvent)
		r.Post("/{id}/copy", h.CopyEvent)
		r.Post("/{id}/visibility", h.ToggleVisibility)
		r.Get("/{id}/calendar.ics", h.Calendar)
		r.Post("/{id}/bookings", h.CreateBooking)
		r.Get("/{id}/bookings", h.ListBookings)
	})

	r.Delete("/bookings/{id}", h.DeleteBooking)

	r.Route("/admin/scheduler", func(r chi.Router) {
		r.Get("/status", h.SchedulerStatus)
		r.Put("/enabled", h.SetRemindersEnabled)
		r.Post("/reconcile", h.Reconcile)
	})

	return r
}
