package model

import "time"

// UserSession models an entry in the `user_sessions` table. The session id
// is an opaque random token handed to the client after a successful
// exchange-code redemption. Sessions carry a fixed TTL; validation never
// extends expires_at, it only bumps last_activity_at.
//
// Fields:
//  ID             – primary key identifier.
//  SessionID      – opaque random session token (unique).
//  UserID         – owning user.
//  IPAddress      – client address recorded at creation.
//  UserAgent      – client user agent recorded at creation.
//  IsActive       – false once terminated.
//  CreatedAt      – timestamp of creation.
//  ExpiresAt      – fixed expiry; always later than CreatedAt.
//  LastActivityAt – updated on every successful validation.
type UserSession struct {
	ID             uint64    // user_sessions.id
	SessionID      string    // user_sessions.session_id
	UserID         uint64    // user_sessions.user_id
	IPAddress      string    // user_sessions.ip_address
	UserAgent      string    // user_sessions.user_agent
	IsActive       bool      // user_sessions.is_active
	CreatedAt      time.Time // user_sessions.created_at
	ExpiresAt      time.Time // user_sessions.expires_at
	LastActivityAt time.Time // user_sessions.last_activity_at
}
