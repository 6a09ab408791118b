package service

import "errors"

// ErrNotRegistered is returned when the user holds no active
// registration for the event.
var ErrNotRegistered = errors.New("not registered for this event")

// ErrRegistrationClosed is returned when the event no longer accepts
// registrations (deadline passed, already started, or not upcoming).
var ErrRegistrationClosed = errors.New("registration is closed for this event")

// ErrEventFull is returned when the event is at capacity and the caller
// declined the waitlist.
var ErrEventFull = errors.New("event is full")

// ErrUnauthorized is returned when a non-owner attempts registrant
// management.
var ErrUnauthorized = errors.New("not authorized to manage this event")

// ErrInvalidState is returned when a registration is not in a state
// that allows the requested transition.
var ErrInvalidState = errors.New("registration state does not allow this change")
