// Package model defines the core domain types for the registration service.
package model

import "time"

// Status is the lifecycle state of a registration.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusWaitlisted Status = "waitlisted"
	StatusCancelled  Status = "cancelled"
	StatusAttended   Status = "attended"
)

// IsActive reports whether the registration still occupies a place in
// the event's registration list, either a confirmed spot or a waitlist
// position.
func (s Status) IsActive() bool {
	return s == StatusRegistered || s == StatusWaitlisted
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusAttended
}

// Registration is one user's registration for one event. At most one
// active registration exists per (event, user) pair; the storage layer
// enforces this with a partial unique index.
type Registration struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	UserID       string     `json:"user_id"`
	Status       Status     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Attended     bool       `json:"attended"`
}

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Event represents a registerable event created by an organizer.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity"`
	// RegisteredCount is a denormalized convenience counter. The live
	// count of registered rows is authoritative for capacity decisions.
	RegisteredCount      int         `json:"registered_count"`
	OwnerID              string      `json:"owner_id"`
	StartsAt             time.Time   `json:"starts_at"`
	RegistrationDeadline time.Time   `json:"registration_deadline"`
	Status               EventStatus `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
}

// RegistrationOpen reports whether the event accepts new registrations
// at the given instant.
func (e *Event) RegistrationOpen(now time.Time) bool {
	return e.Status == EventUpcoming &&
		now.Before(e.RegistrationDeadline) &&
		now.Before(e.StartsAt)
}

// DateInPast reports whether the event has already started.
func (e *Event) DateInPast(now time.Time) bool {
	return e.StartsAt.Before(now)
}

// AvailableSpots returns the number of free confirmed spots, never
// negative.
func AvailableSpots(capacity, registeredCount int) int {
	if spots := capacity - registeredCount; spots > 0 {
		return spots
	}
	return 0
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Capacity             int       `json:"capacity"`
	StartsAt             time.Time `json:"starts_at"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
}

// RegisterRequest is the optional payload for a registration attempt.
type RegisterRequest struct {
	// DisableWaitlist rejects the attempt outright when the event is
	// full instead of adding the caller to the waitlist.
	DisableWaitlist bool   `json:"disable_waitlist"`
	Notes           string `json:"notes"`
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
