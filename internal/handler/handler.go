// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hanse-dev/eventbocker/internal/calendar"
	"github.com/hanse-dev/eventbocker/internal/ledger"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/hanse-dev/eventbocker/internal/repository"
	"github.com/hanse-dev/eventbocker/internal/scheduler"
	"github.com/hanse-dev/eventbocker/internal/service"
	"github.com/rs/zerolog"
)

// Events is the event and booking administration the handlers call into.
type Events interface {
	CreateEvent(ctx context.Context, in model.EventInput) (*model.Event, error)
	UpdateEvent(ctx context.Context, id string, in model.EventInput) (*model.Event, error)
	CopyEvent(ctx context.Context, id string) (*model.Event, error)
	ToggleVisibility(ctx context.Context, id string) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListUpcomingEvents(ctx context.Context, includeInvisible bool) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListBookings(ctx context.Context, eventID string) ([]model.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// Reserver books a seat and sends the confirmation in one transaction.
type Reserver interface {
	Reserve(ctx context.Context, eventID string, reg model.Registrant) (*model.Booking, error)
}

// Scheduler is the admin surface of the reminder scheduler.
type Scheduler interface {
	Status(ctx context.Context) (model.SchedulerStatus, error)
	SetRemindersEnabled(ctx context.Context, enabled bool) error
	Reconcile(ctx context.Context) (scheduler.ReconcileResult, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventHandler holds all HTTP handlers for the event booking API.
type EventHandler struct {
	events    Events
	ledger    Reserver
	scheduler Scheduler
	db        Pinger
	baseURL   string
	logger    zerolog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events Events, reserver Reserver, sched Scheduler, db Pinger, baseURL string, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		events:    events,
		ledger:    reserver,
		scheduler: sched,
		db:        db,
		baseURL:   baseURL,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors to status codes. Unknown errors are
// logged and reported as 500 without details.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *service.ValidationError
		nerr *ledger.NotificationError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrEventFull):
		writeError(w, http.StatusConflict, "event is fully booked")
	case errors.Is(err, repository.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "you are already registered for this event")
	case errors.As(err, &nerr):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("booking rolled back, notification failed")
		writeError(w, http.StatusBadGateway, "could not send confirmation email, booking was not saved")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Upcoming visible events by default; ?include_hidden=true adds hidden ones
// and ?all=true returns past events as well.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var (
		events []model.Event
		err    error
	)
	if boolQuery(r, "all") {
		events, err = h.events.ListEvents(r.Context())
	} else {
		events, err = h.events.ListUpcomingEvents(r.Context(), boolQuery(r, "include_hidden"))
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// CopyEvent handles POST /events/{id}/copy
func (h *EventHandler) CopyEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.CopyEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ToggleVisibility handles POST /events/{id}/visibility
func (h *EventHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.ToggleVisibility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Calendar handles GET /events/{id}/calendar.ics
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="event-`+event.ID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.Export(*event, h.baseURL)))
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// CreateBooking handles POST /events/{id}/bookings
// The booking is only stored if the confirmation email went out.
func (h *EventHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.Registrant
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	booking, err := h.ledger.Reserve(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// ListBookings handles GET /events/{id}/bookings
func (h *EventHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.events.ListBookings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if bookings == nil {
		bookings = []model.Booking{}
	}

	writeJSON(w, http.StatusOK, bookings)
}

// DeleteBooking handles DELETE /bookings/{id}
func (h *EventHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteBooking(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Scheduler admin ──────────────────────────────────────────────────────────

// SchedulerStatus handles GET /admin/scheduler/status
func (h *EventHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.scheduler.Status(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetRemindersEnabled handles PUT /admin/scheduler/enabled
func (h *EventHandler) SetRemindersEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			Error:  "validation failed",
			Fields: map[string]string{"enabled": "is required"},
		})
		return
	}

	if err := h.scheduler.SetRemindersEnabled(r.Context(), *req.Enabled); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.SchedulerStatus(w, r)
}

// Reconcile handles POST /admin/scheduler/reconcile
func (h *EventHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.scheduler.Reconcile(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Health check ─────────────────────────────────────────────────────────────

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck handles GET /health
func (h *EventHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Timestamp: time.Now().UTC()}
	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check: database unreachable")
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func boolQuery(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
