package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ExchangeCodeRepo persists one-time exchange codes bridging the provider
// callback to the client's session-acquisition call.
type ExchangeCodeRepo struct{ DB *sql.DB }

func NewExchangeCodeRepo(db *sql.DB) *ExchangeCodeRepo { return &ExchangeCodeRepo{DB: db} }

// Create inserts an unconsumed exchange code bound to one user.
func (r *ExchangeCodeRepo) Create(ctx context.Context, code string, userID uint64, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO oauth_exchange_codes (code, user_id, expires_at) VALUES (?,?,?)",
		code, userID, expiresAt.UTC())
	return err
}

// Consume atomically redeems a code and returns the owning user id. The
// conditional UPDATE closes the race between two concurrent redemptions;
// the SELECT that follows runs in the same transaction so the winner reads
// its own consistent row. Absent, expired, and already-used codes all
// fail with ErrAlreadyConsumed.
func (r *ExchangeCodeRepo) Consume(ctx context.Context, code string) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE oauth_exchange_codes SET is_used=1, used_at=UTC_TIMESTAMP()
		 WHERE code=? AND is_used=0 AND expires_at>UTC_TIMESTAMP()`,
		code)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrAlreadyConsumed
	}

	var userID uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT user_id FROM oauth_exchange_codes WHERE code=? LIMIT 1",
		code).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAlreadyConsumed
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

// PurgeExpired deletes exchange codes past their expiry and returns the count.
func (r *ExchangeCodeRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM oauth_exchange_codes WHERE expires_at<=UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
