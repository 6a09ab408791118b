// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/memberhub/registration-service/internal/clock"
	"github.com/memberhub/registration-service/internal/model"
	"github.com/memberhub/registration-service/internal/repository"
)

// EventStore is the slice of event persistence the services need.
type EventStore interface {
	Insert(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetForUpdate(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	AdjustRegisteredCount(ctx context.Context, id string, delta int) error
}

// EventService orchestrates event CRUD operations.
type EventService struct {
	events EventStore
	clock  clock.Clock
}

// NewEventService constructs an EventService.
func NewEventService(events EventStore, clk clock.Clock) *EventService {
	return &EventService{events: events, clock: clk}
}

// CreateEvent validates the request and stores a new event owned by the
// caller.
func (s *EventService) CreateEvent(ctx context.Context, ownerID string, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("event title is required")
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be a positive integer")
	}
	if req.Capacity > 100_000 {
		return nil, fmt.Errorf("capacity cannot exceed 100,000")
	}
	now := s.clock.Now()
	if !req.StartsAt.After(now) {
		return nil, fmt.Errorf("event must start in the future")
	}
	if req.RegistrationDeadline.IsZero() {
		req.RegistrationDeadline = req.StartsAt
	}
	if req.RegistrationDeadline.After(req.StartsAt) {
		return nil, fmt.Errorf("registration deadline cannot be after the event start")
	}

	event := &model.Event{
		ID:                   uuid.NewString(),
		Title:                req.Title,
		Description:          req.Description,
		Capacity:             req.Capacity,
		OwnerID:              ownerID,
		StartsAt:             req.StartsAt,
		RegistrationDeadline: req.RegistrationDeadline,
		Status:               model.EventUpcoming,
		CreatedAt:            now,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("event id is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}
