// Package repository implements all database queries for the registration
// service. It uses pgx directly (no ORM) for transparency and performance.
package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRegistered is returned when the user already holds an active
// registration for the event.
var ErrAlreadyRegistered = errors.New("already registered for this event")

// ErrCapacityConflict is returned when a transaction loses a race with a
// concurrent writer. Callers may safely retry the whole operation.
var ErrCapacityConflict = errors.New("registration conflict")
