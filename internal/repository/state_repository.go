package repository

import (
	"context"
	"database/sql"
	"time"
)

// StateRepo persists one-time CSRF state tokens for the authorization
// handshake.
type StateRepo struct{ DB *sql.DB }

func NewStateRepo(db *sql.DB) *StateRepo { return &StateRepo{DB: db} }

// Create inserts an unconsumed state token with its expiry.
func (r *StateRepo) Create(ctx context.Context, state string, expiresAt time.Time, ip, userAgent string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO oauth_states (state, ip_address, user_agent, expires_at) VALUES (?,?,?,?)",
		state, ip, userAgent, expiresAt.UTC())
	return err
}

// Consume marks a state used. The conditional UPDATE is the whole
// atomicity story: of two racing callbacks redeeming the same state,
// exactly one affects a row, the other gets ErrAlreadyConsumed. Absent
// and expired states fail the same way.
func (r *StateRepo) Consume(ctx context.Context, state string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE oauth_states SET is_used=1, used_at=UTC_TIMESTAMP()
		 WHERE state=? AND is_used=0 AND expires_at>UTC_TIMESTAMP()`,
		state)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyConsumed
	}
	return nil
}

// PurgeExpired deletes state rows past their expiry and returns the count.
func (r *StateRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM oauth_states WHERE expires_at<=UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
