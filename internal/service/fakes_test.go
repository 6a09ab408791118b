package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memberhub/registration-service/internal/model"
	"github.com/memberhub/registration-service/internal/repository"
)

// fakeState is the shared in-memory backing for the fake stores. The
// mutex taken by WithTx serializes transactions the way the real
// repository's event row lock does, so concurrent register calls
// exercise the same serialization the database provides.
type fakeState struct {
	mu     sync.Mutex
	events map[string]*model.Event
	regs   map[string]*model.Registration

	// conflictsLeft makes the next N transactions fail with
	// ErrCapacityConflict to exercise the retry loop.
	conflictsLeft int
}

func newFakeState(events ...*model.Event) *fakeState {
	s := &fakeState{
		events: make(map[string]*model.Event),
		regs:   make(map[string]*model.Registration),
	}
	for _, e := range events {
		copied := *e
		s.events[e.ID] = &copied
	}
	return s
}

// userStatus returns the status of the user's row for assertions, or ""
// when no row exists.
func (s *fakeState) userStatus(eventID, userID string) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.UserID == userID {
			return reg.Status
		}
	}
	return ""
}

func (s *fakeState) countByStatus(eventID string, status model.Status) int {
	count := 0
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.Status == status {
			count++
		}
	}
	return count
}

func (s *fakeState) listByStatus(eventID string, status model.Status) []model.Registration {
	var regs []model.Registration
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.Status == status {
			regs = append(regs, *reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
		}
		return regs[i].ID < regs[j].ID
	})
	return regs
}

// fakeEventStore implements EventStore over fakeState.
type fakeEventStore struct {
	state *fakeState
}

func (s *fakeEventStore) Insert(_ context.Context, e *model.Event) error {
	copied := *e
	s.state.events[e.ID] = &copied
	return nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	e, ok := s.state.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *fakeEventStore) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeEventStore) List(_ context.Context) ([]model.Event, error) {
	var events []model.Event
	for _, e := range s.state.events {
		events = append(events, *e)
	}
	return events, nil
}

func (s *fakeEventStore) AdjustRegisteredCount(_ context.Context, id string, delta int) error {
	e, ok := s.state.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.RegisteredCount += delta
	return nil
}

// fakeRegStore implements RegistrationStore over fakeState.
type fakeRegStore struct {
	state *fakeState
}

func (s *fakeRegStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if s.state.conflictsLeft > 0 {
		s.state.conflictsLeft--
		return repository.ErrCapacityConflict
	}
	return fn(ctx)
}

func (s *fakeRegStore) Insert(_ context.Context, reg *model.Registration) error {
	for _, existing := range s.state.regs {
		if existing.EventID == reg.EventID && existing.UserID == reg.UserID && existing.Status.IsActive() {
			return repository.ErrAlreadyRegistered
		}
	}
	copied := *reg
	s.state.regs[reg.ID] = &copied
	return nil
}

func (s *fakeRegStore) FindActive(_ context.Context, eventID, userID string) (*model.Registration, error) {
	for _, reg := range s.state.regs {
		if reg.EventID == eventID && reg.UserID == userID && reg.Status.IsActive() {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRegStore) GetByID(_ context.Context, eventID, id string) (*model.Registration, error) {
	reg, ok := s.state.regs[id]
	if !ok || reg.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	copied := *reg
	return &copied, nil
}

func (s *fakeRegStore) CountByStatus(_ context.Context, eventID string, status model.Status) (int, error) {
	return s.state.countByStatus(eventID, status), nil
}

func (s *fakeRegStore) MarkCancelled(_ context.Context, id string, at time.Time) error {
	reg, ok := s.state.regs[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.Status = model.StatusCancelled
	cancelledAt := at
	reg.CancelledAt = &cancelledAt
	return nil
}

func (s *fakeRegStore) MarkRegistered(_ context.Context, id string) error {
	reg, ok := s.state.regs[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.Status = model.StatusRegistered
	reg.CancelledAt = nil
	return nil
}

func (s *fakeRegStore) MarkAttended(_ context.Context, id string) error {
	reg, ok := s.state.regs[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.Status = model.StatusAttended
	reg.Attended = true
	return nil
}

func (s *fakeRegStore) Delete(_ context.Context, id string) error {
	if _, ok := s.state.regs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.state.regs, id)
	return nil
}

func (s *fakeRegStore) FirstWaitlisted(_ context.Context, eventID string) (*model.Registration, error) {
	regs := s.state.listByStatus(eventID, model.StatusWaitlisted)
	if len(regs) == 0 {
		return nil, nil
	}
	first := regs[0]
	return &first, nil
}

func (s *fakeRegStore) ListByStatus(_ context.Context, eventID string, status model.Status) ([]model.Registration, error) {
	return s.state.listByStatus(eventID, status), nil
}

// fakeNotifier records promotion notifications and signals each one on
// a channel so tests can await the asynchronous dispatch.
type fakeNotifier struct {
	mu       sync.Mutex
	promoted []string
	signal   chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{signal: make(chan struct{}, 16)}
}

func (n *fakeNotifier) NotifyPromotion(_ context.Context, userID, _ string) {
	n.mu.Lock()
	n.promoted = append(n.promoted, userID)
	n.mu.Unlock()
	n.signal <- struct{}{}
}

// await blocks until one notification arrived or the timeout elapsed.
func (n *fakeNotifier) await(timeout time.Duration) bool {
	select {
	case <-n.signal:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (n *fakeNotifier) promotedUsers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.promoted...)
}

// stepClock hands out strictly increasing instants, one second apart,
// so registration order is deterministic in tests.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{now: start.UTC()}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
