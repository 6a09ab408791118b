package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memberhub/registration-service/internal/model"
)

const registrationColumns = `id, event_id, user_id, status, registered_at,
	cancelled_at, notes, attended`

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// WithTx runs fn inside a single transaction; nested repository calls
// made with the returned context join it.
func (r *RegistrationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.RegisteredAt,
		&reg.CancelledAt, &reg.Notes, &reg.Attended,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Insert stores a new registration row. A violation of the active
// (event, user) uniqueness constraint maps to ErrAlreadyRegistered, so
// a race between duplicate register calls fails one of them
// deterministically.
func (r *RegistrationRepository) Insert(ctx context.Context, reg *model.Registration) error {
	_, err := r.exec(ctx,
		`INSERT INTO registrations (id, event_id, user_id, status, registered_at,
			cancelled_at, notes, attended)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.EventID, reg.UserID, reg.Status, reg.RegisteredAt,
		reg.CancelledAt, reg.Notes, reg.Attended,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// FindActive returns the user's registered or waitlisted row for the
// event, or nil when the user holds no active registration.
func (r *RegistrationRepository) FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	reg, err := scanRegistration(r.queryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status IN ('registered', 'waitlisted')`,
		eventID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active registration: %w", err)
	}
	return reg, nil
}

// GetByID returns the registration for the event or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, eventID, id string) (*model.Registration, error) {
	reg, err := scanRegistration(r.queryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND id = $2`,
		eventID, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// CountByStatus counts the event's registrations in the given status.
func (r *RegistrationRepository) CountByStatus(ctx context.Context, eventID string, status model.Status) (int, error) {
	var count int
	err := r.queryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`,
		eventID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// MarkCancelled soft-cancels the registration.
func (r *RegistrationRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	return r.updateStatus(ctx,
		`UPDATE registrations SET status = 'cancelled', cancelled_at = $2 WHERE id = $1`,
		id, at,
	)
}

// MarkRegistered promotes the registration to a confirmed spot,
// clearing any cancellation marker.
func (r *RegistrationRepository) MarkRegistered(ctx context.Context, id string) error {
	return r.updateStatus(ctx,
		`UPDATE registrations SET status = 'registered', cancelled_at = NULL WHERE id = $1`,
		id,
	)
}

// MarkAttended records that the registrant showed up.
func (r *RegistrationRepository) MarkAttended(ctx context.Context, id string) error {
	return r.updateStatus(ctx,
		`UPDATE registrations SET status = 'attended', attended = TRUE WHERE id = $1`,
		id,
	)
}

// Delete removes the row entirely. Normal cancellation soft-cancels;
// only the administrative remove-registrant path deletes.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FirstWaitlisted returns the event's earliest waitlisted registration,
// ordered by registered_at with id as the tie-break, or nil when the
// waitlist is empty.
func (r *RegistrationRepository) FirstWaitlisted(ctx context.Context, eventID string) (*model.Registration, error) {
	reg, err := scanRegistration(r.queryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status = 'waitlisted'
		 ORDER BY registered_at, id
		 LIMIT 1`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first waitlisted: %w", err)
	}
	return reg, nil
}

// ListByStatus returns the event's registrations in the given status,
// ordered by registered_at ascending (waitlist order).
func (r *RegistrationRepository) ListByStatus(ctx context.Context, eventID string, status model.Status) ([]model.Registration, error) {
	rows, err := r.query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status = $2
		 ORDER BY registered_at, id`,
		eventID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *RegistrationRepository) updateStatus(ctx context.Context, sql string, args ...any) error {
	tag, err := r.exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RegistrationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.db.Exec(ctx, sql, args...)
}

func (r *RegistrationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.db.Query(ctx, sql, args...)
}

func (r *RegistrationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.db.QueryRow(ctx, sql, args...)
}
