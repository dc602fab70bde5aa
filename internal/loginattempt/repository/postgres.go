package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/loginattempt/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

type PostgresRepository struct {
	db    db.DBTX
	begin db.Beginner
}

// NewPostgresRepository returns a login attempt repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn, begin: db.SQLBeginner{DB: conn}}
}

func (r *PostgresRepository) FindLockoutByEmail(ctx context.Context, email string, now time.Time) (*domain.Lockout, error) {
	var until time.Time
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT locked_until FROM login_attempts
		WHERE lower(email) = $1 AND locked_until IS NOT NULL AND locked_until > $2
		ORDER BY created_at DESC LIMIT 1`, userdomain.NormalizeEmail(email), now).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Lockout{Email: email, LockedUntil: until}, nil
}

func (r *PostgresRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE lower(email) = $1 AND success = FALSE AND created_at >= $2`,
		userdomain.NormalizeEmail(email), since).Scan(&n)
	return n, err
}

func (r *PostgresRepository) Record(ctx context.Context, a *domain.Attempt) error {
	var lockedUntil sql.NullTime
	if a.LockedUntil != nil {
		lockedUntil = sql.NullTime{Time: *a.LockedUntil, Valid: true}
	}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO login_attempts (id, email, ip_address, success, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, userdomain.NormalizeEmail(a.Email), a.IPAddress, a.Success, lockedUntil, a.CreatedAt)
	return err
}

// RecordFailure appends the failed attempt a and counts the failures for its email since since, a
// included. When the count reaches threshold the row is given locked_until = a.CreatedAt+lockFor and
// a.LockedUntil is set. Failures for one email are serialized by a transaction-scoped advisory lock,
// so concurrent attempts each see every failure committed before them.
func (r *PostgresRepository) RecordFailure(ctx context.Context, a *domain.Attempt, since time.Time, threshold int, lockFor time.Duration) (int, error) {
	a.Success = false
	a.LockedUntil = nil
	var failures int
	err := r.inTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			"login_attempts:"+userdomain.NormalizeEmail(a.Email)); err != nil {
			return err
		}
		if err := r.Record(ctx, a); err != nil {
			return err
		}
		n, err := r.CountRecentFailures(ctx, a.Email, since)
		if err != nil {
			return err
		}
		failures = n
		if n < threshold {
			return nil
		}
		until := a.CreatedAt.Add(lockFor)
		if _, err := tx.ExecContext(ctx, `UPDATE login_attempts SET locked_until = $2 WHERE id = $1`, a.ID, until); err != nil {
			return err
		}
		a.LockedUntil = &until
		return nil
	})
	if err != nil {
		a.LockedUntil = nil
		return 0, err
	}
	return failures, nil
}

// inTx runs fn in the transaction bound to ctx, or in a new one committed when fn succeeds.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	if tx, ok := db.TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := r.begin.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(db.WithTx(ctx, tx), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
