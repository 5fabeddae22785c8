package model

import "time"

// OAuthState is a one-time CSRF token in the `oauth_states` table. It binds
// an authorization request to its callback: issued before redirecting the
// browser to the provider, consumed exactly once when the callback returns.
// Consumption is a conditional update so two racing callbacks cannot both
// redeem the same state.
type OAuthState struct {
	ID        uint64     // oauth_states.id
	State     string     // oauth_states.state (unique)
	IPAddress string     // oauth_states.ip_address
	UserAgent string     // oauth_states.user_agent
	CreatedAt time.Time  // oauth_states.created_at
	ExpiresAt time.Time  // oauth_states.expires_at (short TTL, minutes)
	IsUsed    bool       // oauth_states.is_used
	UsedAt    *time.Time // oauth_states.used_at (nullable)
}

// ExchangeCode is a one-time code in the `oauth_exchange_codes` table. It
// bridges the provider's server-to-browser callback and the client's own
// session-acquisition call, so the session id never rides on a redirect.
// Same single-use consumption contract as OAuthState, bound to one user.
type ExchangeCode struct {
	ID        uint64     // oauth_exchange_codes.id
	Code      string     // oauth_exchange_codes.code (unique)
	UserID    uint64     // oauth_exchange_codes.user_id
	CreatedAt time.Time  // oauth_exchange_codes.created_at
	ExpiresAt time.Time  // oauth_exchange_codes.expires_at (short TTL)
	IsUsed    bool       // oauth_exchange_codes.is_used
	UsedAt    *time.Time // oauth_exchange_codes.used_at (nullable)
}
