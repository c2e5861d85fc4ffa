package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no profile row exists for the user.
	ErrNotFound = errors.New("profile not found")

	// ErrInsufficientCredits occurs when the balance cannot cover a debit.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Repository persists profiles and their credit events.
type Repository interface {
	Create(ctx context.Context, p Profile) error
	Get(ctx context.Context, userID string) (Profile, error)
	// Debit atomically subtracts amount when the balance covers it and
	// returns the persisted post-debit balance.
	Debit(ctx context.Context, userID string, amount float64, kind, requestID string) (float64, error)
	Grant(ctx context.Context, userID string, amount float64, kind string) (float64, error)
	StartTrial(ctx context.Context, userID, plan string, endsAt time.Time) error
	CompleteOnboarding(ctx context.Context, userID string) error
	Events(ctx context.Context, userID string, limit int) ([]CreditEvent, error)
}

// PostgresRepository stores profiles in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a profile row.
func (r *PostgresRepository) Create(ctx context.Context, p Profile) error {
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO profiles (user_id, credits, user_status, paid_plan, trial_ends_at, onboarding_completed, created_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`,
		userID, p.Credits, p.UserStatus, p.PaidPlan, p.TrialEndsAt, p.OnboardingCompleted, p.CreatedAt.UTC())
	return err
}

// Get fetches a profile by user identifier.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT user_id, credits, user_status, COALESCE(paid_plan, ''), trial_ends_at, onboarding_completed, created_at
        FROM profiles WHERE user_id = $1`, id)

	var (
		idVal     uuid.UUID
		createdAt time.Time
		p         Profile
	)
	if err := row.Scan(&idVal, &p.Credits, &p.UserStatus, &p.PaidPlan, &p.TrialEndsAt, &p.OnboardingCompleted, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	p.UserID = idVal.String()
	p.CreatedAt = createdAt.UTC()
	return p, nil
}

// Debit performs a single conditional update so two concurrent spenders can
// never drive the balance negative, and records a ledger event in the same
// transaction.
func (r *PostgresRepository) Debit(ctx context.Context, userID string, amount float64, kind, requestID string) (float64, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var remaining float64
	err = tx.QueryRow(ctx, `UPDATE profiles SET credits = credits - $2
        WHERE user_id = $1 AND credits >= $2
        RETURNING credits`, id, amount).Scan(&remaining)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		// Distinguish a missing row from an uncovered balance.
		var exists bool
		if scanErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)`, id).Scan(&exists); scanErr != nil {
			return 0, scanErr
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx, `INSERT INTO credit_events (id, user_id, amount, kind, request_id, created_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		uuid.New(), id, -amount, kind, requestID, time.Now().UTC()); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return remaining, nil
}

// Grant adds credits to the balance and records a ledger event.
func (r *PostgresRepository) Grant(ctx context.Context, userID string, amount float64, kind string) (float64, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var balance float64
	err = tx.QueryRow(ctx, `UPDATE profiles SET credits = credits + $2
        WHERE user_id = $1 RETURNING credits`, id, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO credit_events (id, user_id, amount, kind, request_id, created_at)
        VALUES ($1, $2, $3, $4, NULL, $5)`,
		uuid.New(), id, amount, kind, time.Now().UTC()); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return balance, nil
}

// StartTrial flips the profile into paid trial status.
func (r *PostgresRepository) StartTrial(ctx context.Context, userID, plan string, endsAt time.Time) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE profiles SET user_status = $2, paid_plan = $3, trial_ends_at = $4
        WHERE user_id = $1`, id, StatusPaid, plan, endsAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteOnboarding marks the onboarding carousel as done.
func (r *PostgresRepository) CompleteOnboarding(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE profiles SET onboarding_completed = TRUE WHERE user_id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Events returns the most recent credit events for the user.
func (r *PostgresRepository) Events(ctx context.Context, userID string, limit int) ([]CreditEvent, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, amount, kind, COALESCE(request_id, ''), created_at
        FROM credit_events WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CreditEvent
	for rows.Next() {
		var (
			evID      uuid.UUID
			uID       uuid.UUID
			createdAt time.Time
			ev        CreditEvent
		)
		if err := rows.Scan(&evID, &uID, &ev.Amount, &ev.Kind, &ev.RequestID, &createdAt); err != nil {
			return nil, err
		}
		ev.ID = evID.String()
		ev.UserID = uID.String()
		ev.CreatedAt = createdAt.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
