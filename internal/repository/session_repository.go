package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credbroker/internal/model"
)

// SessionRepo persists user sessions. Sessions have a fixed TTL; only
// last_activity_at moves after creation.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = "id,session_id,user_id,ip_address,COALESCE(user_agent,''),is_active,created_at,expires_at,last_activity_at"

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, sessionID string, userID uint64, expiresAt time.Time, ip, userAgent string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_sessions (session_id, user_id, ip_address, user_agent, expires_at)
		 VALUES (?,?,?,?,?)`,
		sessionID, userID, ip, userAgent, expiresAt.UTC())
	return err
}

// GetActive returns the session iff it is active and unexpired, bumping
// last_activity_at in the same call. Expired or terminated sessions are
// reported as ErrNotFound; validation never extends expires_at.
func (r *SessionRepo) GetActive(ctx context.Context, sessionID string) (model.UserSession, error) {
	var s model.UserSession
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+` FROM user_sessions
		 WHERE session_id=? AND is_active=1 AND expires_at>UTC_TIMESTAMP() LIMIT 1`,
		sessionID).Scan(&s.ID, &s.SessionID, &s.UserID, &s.IPAddress, &s.UserAgent,
		&s.IsActive, &s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserSession{}, ErrNotFound
	}
	if err != nil {
		return model.UserSession{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET last_activity_at=UTC_TIMESTAMP() WHERE session_id=?",
		sessionID)
	if err != nil {
		return model.UserSession{}, err
	}
	return s, nil
}

// Terminate deactivates a session. Unknown or already terminated session
// ids are not an error; termination is idempotent.
func (r *SessionRepo) Terminate(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET is_active=0 WHERE session_id=?", sessionID)
	return err
}

// TerminateAllForUser deactivates every active session a user holds and
// returns how many were affected.
func (r *SessionRepo) TerminateAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET is_active=0 WHERE user_id=? AND is_active=1", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpired deactivates all sessions past their expiry. Intended to run
// from an external schedule, not from the request path.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET is_active=0 WHERE is_active=1 AND expires_at<=UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByUser returns a user's sessions, optionally only the active ones.
func (r *SessionRepo) ListByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.UserSession, error) {
	q := "SELECT " + sessionColumns + " FROM user_sessions WHERE user_id=?"
	if activeOnly {
		q += " AND is_active=1 AND expires_at>UTC_TIMESTAMP()"
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.UserSession
	for rows.Next() {
		var s model.UserSession
		if err := rows.Scan(&s.ID, &s.SessionID, &s.UserID, &s.IPAddress, &s.UserAgent,
			&s.IsActive, &s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
