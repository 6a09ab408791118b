// Package policy holds the capacity decision for new registrations.
package policy

import "github.com/memberhub/registration-service/internal/model"

// Decide returns the status a new registration should be created with,
// given the current number of confirmed registrations and the event's
// capacity. A spot is granted only while registeredCount is strictly
// below capacity; everyone else is waitlisted.
//
// The count must come from the same transaction that performs the
// insert, otherwise two concurrent requests can both observe room for
// the last spot.
func Decide(registeredCount, capacity int) model.Status {
	if registeredCount < capacity {
		return model.StatusRegistered
	}
	return model.StatusWaitlisted
}
