package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memberhub/registration-service/internal/clock"
	"github.com/memberhub/registration-service/internal/model"
	"github.com/memberhub/registration-service/internal/repository"
)

func TestEventService_CreateEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := model.CreateEventRequest{
		Title:                "Spring Mixer",
		Description:          "Annual gathering",
		Capacity:             40,
		StartsAt:             now.Add(72 * time.Hour),
		RegistrationDeadline: now.Add(48 * time.Hour),
	}

	newSvc := func() (*EventService, *fakeState) {
		state := newFakeState()
		return NewEventService(&fakeEventStore{state: state}, clock.NewFixed(now)), state
	}

	t.Run("stores a valid event", func(t *testing.T) {
		svc, state := newSvc()
		event, err := svc.CreateEvent(context.Background(), ownerID, valid)
		require.NoError(t, err)
		require.NotEmpty(t, event.ID)
		require.Equal(t, model.EventUpcoming, event.Status)
		require.Equal(t, ownerID, event.OwnerID)
		require.Contains(t, state.events, event.ID)
	})

	t.Run("defaults the deadline to the start time", func(t *testing.T) {
		svc, _ := newSvc()
		req := valid
		req.RegistrationDeadline = time.Time{}
		event, err := svc.CreateEvent(context.Background(), ownerID, req)
		require.NoError(t, err)
		require.Equal(t, req.StartsAt, event.RegistrationDeadline)
	})

	invalid := []struct {
		name   string
		mutate func(r *model.CreateEventRequest)
	}{
		{"blank title", func(r *model.CreateEventRequest) { r.Title = "   " }},
		{"zero capacity", func(r *model.CreateEventRequest) { r.Capacity = 0 }},
		{"negative capacity", func(r *model.CreateEventRequest) { r.Capacity = -3 }},
		{"capacity too large", func(r *model.CreateEventRequest) { r.Capacity = 100_001 }},
		{"starts in the past", func(r *model.CreateEventRequest) { r.StartsAt = now.Add(-time.Hour) }},
		{"deadline after start", func(r *model.CreateEventRequest) {
			r.RegistrationDeadline = r.StartsAt.Add(time.Hour)
		}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newSvc()
			req := valid
			tt.mutate(&req)
			_, err := svc.CreateEvent(context.Background(), ownerID, req)
			require.Error(t, err)
		})
	}
}

func TestEventService_GetEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := newFakeState(&model.Event{ID: testEventID, Title: "Launch Night", Capacity: 10})
	svc := NewEventService(&fakeEventStore{state: state}, clock.NewFixed(now))

	event, err := svc.GetEvent(context.Background(), testEventID)
	require.NoError(t, err)
	require.Equal(t, "Launch Night", event.Title)

	_, err = svc.GetEvent(context.Background(), "b0000000-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
