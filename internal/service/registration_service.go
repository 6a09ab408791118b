package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/memberhub/registration-service/internal/clock"
	"github.com/memberhub/registration-service/internal/model"
	"github.com/memberhub/registration-service/internal/notify"
	"github.com/memberhub/registration-service/internal/policy"
	"github.com/memberhub/registration-service/internal/repository"
)

// RegistrationStore is the slice of registration persistence the
// service needs. WithTx must make nested store calls made with the
// callback's context part of one atomic transaction.
type RegistrationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, reg *model.Registration) error
	FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error)
	GetByID(ctx context.Context, eventID, id string) (*model.Registration, error)
	CountByStatus(ctx context.Context, eventID string, status model.Status) (int, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	MarkRegistered(ctx context.Context, id string) error
	MarkAttended(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	FirstWaitlisted(ctx context.Context, eventID string) (*model.Registration, error)
	ListByStatus(ctx context.Context, eventID string, status model.Status) ([]model.Registration, error)
}

// conflictRetries bounds internal retries when a transaction loses a
// race with a concurrent writer.
const conflictRetries = 3

// RegistrationService orchestrates registration, cancellation, and
// waitlist promotion against the stores.
type RegistrationService struct {
	events        EventStore
	registrations RegistrationStore
	notifier      notify.Notifier
	clock         clock.Clock
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	events EventStore,
	registrations RegistrationStore,
	notifier notify.Notifier,
	clk clock.Clock,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		notifier:      notifier,
		clock:         clk,
	}
}

// RegisterOptions adjusts a single registration attempt.
type RegisterOptions struct {
	// DisableWaitlist fails with ErrEventFull instead of waitlisting
	// when no confirmed spot is free. The default is to waitlist.
	DisableWaitlist bool
	Notes           string
}

// RegisterResult describes the outcome of a successful registration.
type RegisterResult struct {
	Registration *model.Registration `json:"registration"`
	IsWaitlisted bool                `json:"is_waitlisted"`
	Message      string              `json:"message"`
}

// CancelResult describes a successful cancellation or removal.
type CancelResult struct {
	Message string `json:"message"`
}

// RegistrantStats summarises an event's registration load.
type RegistrantStats struct {
	RegisteredCount int `json:"registered_count"`
	WaitlistedCount int `json:"waitlisted_count"`
	MaxCapacity     int `json:"max_capacity"`
	AvailableSpots  int `json:"available_spots"`
}

// RegistrantList is the owner's view of an event's registrants.
type RegistrantList struct {
	Registrants []model.Registration `json:"registrants"`
	Waitlisted  []model.Registration `json:"waitlisted"`
	Stats       RegistrantStats      `json:"stats"`
}

// Register creates a registration for the user. The confirmed-spot
// count, capacity decision, and insert all happen inside one
// transaction holding the event row lock, so the number of registered
// rows can never exceed capacity under concurrent calls.
func (s *RegistrationService) Register(ctx context.Context, eventID, userID string, opts RegisterOptions) (*RegisterResult, error) {
	if eventID == "" || userID == "" {
		return nil, fmt.Errorf("event id and user id are required")
	}

	var result *RegisterResult
	err := s.retryOnConflict(func() error {
		return s.registrations.WithTx(ctx, func(txCtx context.Context) error {
			event, err := s.events.GetForUpdate(txCtx, eventID)
			if err != nil {
				return err
			}
			if !event.RegistrationOpen(s.clock.Now()) {
				return ErrRegistrationClosed
			}

			existing, err := s.registrations.FindActive(txCtx, eventID, userID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.Status == model.StatusRegistered {
					return fmt.Errorf("%w: you are already registered for this event", repository.ErrAlreadyRegistered)
				}
				return fmt.Errorf("%w: you are already on the waitlist for this event", repository.ErrAlreadyRegistered)
			}

			registered, err := s.registrations.CountByStatus(txCtx, eventID, model.StatusRegistered)
			if err != nil {
				return err
			}

			status := policy.Decide(registered, event.Capacity)
			if status == model.StatusWaitlisted && opts.DisableWaitlist {
				return ErrEventFull
			}

			reg := &model.Registration{
				ID:           uuid.NewString(),
				EventID:      eventID,
				UserID:       userID,
				Status:       status,
				RegisteredAt: s.clock.Now(),
				Notes:        opts.Notes,
			}
			if err := s.registrations.Insert(txCtx, reg); err != nil {
				return err
			}
			if status == model.StatusRegistered {
				if err := s.events.AdjustRegisteredCount(txCtx, eventID, 1); err != nil {
					return err
				}
			}

			message := "Successfully registered for the event!"
			if status == model.StatusWaitlisted {
				message = "Event is full. You have been added to the waitlist."
			}
			result = &RegisterResult{
				Registration: reg,
				IsWaitlisted: status == model.StatusWaitlisted,
				Message:      message,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel releases the user's active registration. When the cancelled
// row held a confirmed spot, the earliest waitlisted registrant is
// promoted inside the same transaction; the promotion notification is
// dispatched only after the transaction commits.
func (s *RegistrationService) Cancel(ctx context.Context, eventID, userID string) (*CancelResult, error) {
	if eventID == "" || userID == "" {
		return nil, fmt.Errorf("event id and user id are required")
	}

	var promoted *model.Registration
	err := s.retryOnConflict(func() error {
		promoted = nil
		return s.registrations.WithTx(ctx, func(txCtx context.Context) error {
			event, err := s.events.GetForUpdate(txCtx, eventID)
			if err != nil {
				return err
			}

			reg, err := s.registrations.FindActive(txCtx, eventID, userID)
			if err != nil {
				return err
			}
			if reg == nil {
				return ErrNotRegistered
			}

			wasRegistered := reg.Status == model.StatusRegistered
			if err := s.registrations.MarkCancelled(txCtx, reg.ID, s.clock.Now()); err != nil {
				return err
			}
			if !wasRegistered {
				return nil
			}

			if err := s.events.AdjustRegisteredCount(txCtx, eventID, -1); err != nil {
				return err
			}
			promoted, err = s.promoteFirstWaitlisted(txCtx, event)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if promoted != nil {
		notify.Dispatch(s.notifier, promoted.UserID, eventID)
	}
	return &CancelResult{Message: "Registration cancelled successfully."}, nil
}

// RemoveRegistrant lets the event owner remove a registration by id.
// It performs the same accounting as Cancel and then deletes the row.
func (s *RegistrationService) RemoveRegistrant(ctx context.Context, eventID, registrationID, requesterID string) (*CancelResult, error) {
	if eventID == "" || registrationID == "" {
		return nil, fmt.Errorf("event id and registration id are required")
	}

	var promoted *model.Registration
	err := s.retryOnConflict(func() error {
		promoted = nil
		return s.registrations.WithTx(ctx, func(txCtx context.Context) error {
			event, err := s.events.GetForUpdate(txCtx, eventID)
			if err != nil {
				return err
			}
			if event.OwnerID != requesterID {
				return ErrUnauthorized
			}

			reg, err := s.registrations.GetByID(txCtx, eventID, registrationID)
			if err != nil {
				return err
			}

			wasRegistered := reg.Status == model.StatusRegistered
			if err := s.registrations.Delete(txCtx, reg.ID); err != nil {
				return err
			}
			if !wasRegistered {
				return nil
			}

			if err := s.events.AdjustRegisteredCount(txCtx, eventID, -1); err != nil {
				return err
			}
			promoted, err = s.promoteFirstWaitlisted(txCtx, event)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if promoted != nil {
		notify.Dispatch(s.notifier, promoted.UserID, eventID)
	}
	return &CancelResult{Message: "Registrant removed successfully."}, nil
}

// ListRegistrants returns the owner's view of an event's registered and
// waitlisted users, both ordered by registration time, with stats
// computed from the live counts.
func (s *RegistrationService) ListRegistrants(ctx context.Context, eventID, requesterID string) (*RegistrantList, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != requesterID {
		return nil, ErrUnauthorized
	}

	registrants, err := s.registrations.ListByStatus(ctx, eventID, model.StatusRegistered)
	if err != nil {
		return nil, err
	}
	waitlisted, err := s.registrations.ListByStatus(ctx, eventID, model.StatusWaitlisted)
	if err != nil {
		return nil, err
	}

	if registrants == nil {
		registrants = []model.Registration{}
	}
	if waitlisted == nil {
		waitlisted = []model.Registration{}
	}

	return &RegistrantList{
		Registrants: registrants,
		Waitlisted:  waitlisted,
		Stats: RegistrantStats{
			RegisteredCount: len(registrants),
			WaitlistedCount: len(waitlisted),
			MaxCapacity:     event.Capacity,
			AvailableSpots:  model.AvailableSpots(event.Capacity, len(registrants)),
		},
	}, nil
}

// MarkAttendance records that a registrant attended the event. Only the
// owner may mark attendance, and only a confirmed registration can
// transition to attended.
func (s *RegistrationService) MarkAttendance(ctx context.Context, eventID, registrationID, requesterID string) (*model.Registration, error) {
	if eventID == "" || registrationID == "" {
		return nil, fmt.Errorf("event id and registration id are required")
	}

	var updated *model.Registration
	err := s.retryOnConflict(func() error {
		return s.registrations.WithTx(ctx, func(txCtx context.Context) error {
			event, err := s.events.GetForUpdate(txCtx, eventID)
			if err != nil {
				return err
			}
			if event.OwnerID != requesterID {
				return ErrUnauthorized
			}

			reg, err := s.registrations.GetByID(txCtx, eventID, registrationID)
			if err != nil {
				return err
			}
			if reg.Status != model.StatusRegistered {
				return fmt.Errorf("%w: only a registered attendee can be marked attended", ErrInvalidState)
			}

			if err := s.registrations.MarkAttended(txCtx, reg.ID); err != nil {
				return err
			}
			// Keep the derived counter mirroring the live count of
			// registered rows.
			if err := s.events.AdjustRegisteredCount(txCtx, eventID, -1); err != nil {
				return err
			}

			reg.Status = model.StatusAttended
			reg.Attended = true
			updated = reg
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// promoteFirstWaitlisted moves the event's earliest waitlisted
// registration to a confirmed spot. It must run inside the transaction
// that freed the spot and re-checks capacity rather than assuming the
// freed spot is still free. Returns nil when nothing was promoted.
//
// This is the single implementation of waitlist promotion; both
// cancellation paths call it.
func (s *RegistrationService) promoteFirstWaitlisted(ctx context.Context, event *model.Event) (*model.Registration, error) {
	next, err := s.registrations.FirstWaitlisted(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	registered, err := s.registrations.CountByStatus(ctx, event.ID, model.StatusRegistered)
	if err != nil {
		return nil, err
	}
	if registered >= event.Capacity {
		return nil, nil
	}

	if err := s.registrations.MarkRegistered(ctx, next.ID); err != nil {
		return nil, err
	}
	if err := s.events.AdjustRegisteredCount(ctx, event.ID, 1); err != nil {
		return nil, err
	}

	next.Status = model.StatusRegistered
	next.CancelledAt = nil
	return next, nil
}

func (s *RegistrationService) retryOnConflict(attempt func() error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = attempt()
		if !errors.Is(err, repository.ErrCapacityConflict) {
			return err
		}
	}
	return err
}
