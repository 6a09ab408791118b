// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memberhub/registration-service/internal/model"
	"github.com/memberhub/registration-service/internal/repository"
	"github.com/memberhub/registration-service/internal/service"
)

// EventAPI is the slice of the event service the handlers use.
type EventAPI interface {
	CreateEvent(ctx context.Context, ownerID string, req model.CreateEventRequest) (*model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
}

// RegistrationAPI is the slice of the registration service the handlers
// use.
type RegistrationAPI interface {
	Register(ctx context.Context, eventID, userID string, opts service.RegisterOptions) (*service.RegisterResult, error)
	Cancel(ctx context.Context, eventID, userID string) (*service.CancelResult, error)
	RemoveRegistrant(ctx context.Context, eventID, registrationID, requesterID string) (*service.CancelResult, error)
	ListRegistrants(ctx context.Context, eventID, requesterID string) (*service.RegistrantList, error)
	MarkAttendance(ctx context.Context, eventID, registrationID, requesterID string) (*model.Registration, error)
}

// Handler holds all HTTP handlers for the registration API.
type Handler struct {
	events        EventAPI
	registrations RegistrationAPI
}

// New constructs a Handler.
func New(events EventAPI, registrations RegistrationAPI) *Handler {
	return &Handler{events: events, registrations: registrations}
}

// Routes mounts all API routes on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/register", h.Register)
		r.Delete("/{id}/register", h.Cancel)
		r.Get("/{id}/registrants", h.ListRegistrants)
		r.Delete("/{id}/registrants/{registrationID}", h.RemoveRegistrant)
		r.Post("/{id}/registrants/{registrationID}/attendance", h.MarkAttendance)
	})
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Success: false, Error: code, Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps a service/repository error to an HTTP status
// and a stable error code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already_registered", err.Error())
	case errors.Is(err, service.ErrEventFull):
		writeError(w, http.StatusConflict, "event_full", err.Error())
	case errors.Is(err, repository.ErrCapacityConflict):
		writeError(w, http.StatusConflict, "capacity_conflict", "registration conflict, please retry")
	case errors.Is(err, service.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "not_registered", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, service.ErrRegistrationClosed):
		writeError(w, http.StatusBadRequest, "registration_closed", err.Error())
	case errors.Is(err, service.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// callerID returns the authenticated user id, or writes a 401 and
// returns false when the request carries none.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := UserID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing X-User-ID header")
		return "", false
	}
	return id, true
}

// ─── Event handlers ───────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}

	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), owner, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list events")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ─── Registration handlers ────────────────────────────────────────────────────

type registerResponse struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	IsWaitlisted bool                `json:"is_waitlisted"`
	Registration *model.Registration `json:"registration"`
}

// Register handles POST /events/{id}/register
// The body is optional; an empty body registers with default options.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	user, ok := callerID(w, r)
	if !ok {
		return
	}

	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}

	result, err := h.registrations.Register(r.Context(), chi.URLParam(r, "id"), user, service.RegisterOptions{
		DisableWaitlist: req.DisableWaitlist,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Success:      true,
		Message:      result.Message,
		IsWaitlisted: result.IsWaitlisted,
		Registration: result.Registration,
	})
}

type cancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Cancel handles DELETE /events/{id}/register
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := callerID(w, r)
	if !ok {
		return
	}

	result, err := h.registrations.Cancel(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Success: true, Message: result.Message})
}

// ListRegistrants handles GET /events/{id}/registrants
// Restricted to the event owner.
func (h *Handler) ListRegistrants(w http.ResponseWriter, r *http.Request) {
	user, ok := callerID(w, r)
	if !ok {
		return
	}

	list, err := h.registrations.ListRegistrants(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RemoveRegistrant handles DELETE /events/{id}/registrants/{registrationID}
// Restricted to the event owner.
func (h *Handler) RemoveRegistrant(w http.ResponseWriter, r *http.Request) {
	user, ok := callerID(w, r)
	if !ok {
		return
	}

	result, err := h.registrations.RemoveRegistrant(
		r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "registrationID"), user,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Success: true, Message: result.Message})
}

// MarkAttendance handles POST /events/{id}/registrants/{registrationID}/attendance
// Restricted to the event owner.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	user, ok := callerID(w, r)
	if !ok {
		return
	}

	reg, err := h.registrations.MarkAttendance(
		r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "registrationID"), user,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
