package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memberhub/registration-service/internal/model"
)

const eventColumns = `id, title, description, capacity, registered_count,
	owner_id, starts_at, registration_deadline, status, created_at`

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Capacity, &e.RegisteredCount,
		&e.OwnerID, &e.StartsAt, &e.RegistrationDeadline, &e.Status, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert stores a new event.
func (r *EventRepository) Insert(ctx context.Context, e *model.Event) error {
	_, err := r.exec(ctx,
		`INSERT INTO events (id, title, description, capacity, registered_count,
			owner_id, starts_at, registration_deadline, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Title, e.Description, e.Capacity, e.RegisteredCount,
		e.OwnerID, e.StartsAt, e.RegistrationDeadline, e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.queryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// GetForUpdate loads the event under an exclusive row lock. The lock
// serializes every registration mutation for the event until the
// surrounding transaction commits, which is what keeps the
// count-then-insert sequence safe. Must be called inside withTx.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.queryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// AdjustRegisteredCount moves the denormalized counter by delta. The
// counter is a convenience for event listings; capacity decisions use
// the live count of registered rows instead.
func (r *EventRepository) AdjustRegisteredCount(ctx context.Context, id string, delta int) error {
	_, err := r.exec(ctx,
		`UPDATE events SET registered_count = registered_count + $2 WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust registered_count: %w", err)
	}
	return nil
}

func (r *EventRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.db.Exec(ctx, sql, args...)
}

func (r *EventRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.db.QueryRow(ctx, sql, args...)
}
