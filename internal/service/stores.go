package service

import (
	"context"
	"time"

	"credbroker/internal/model"
	"credbroker/internal/provider"
)

// The interfaces below are the storage and upstream collaborators of the
// broker core. internal/repository and internal/provider satisfy them;
// tests substitute in-memory fakes.

// UserStore persists local user records.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByExternalID(ctx context.Context, externalID string) (model.User, error)
	Upsert(ctx context.Context, externalID, email, firstName, lastName string) (model.User, error)
}

// AllowedUserStore answers the whitelist membership question.
type AllowedUserStore interface {
	IsAllowed(ctx context.Context, externalID string) (bool, error)
}

// SessionStore persists user sessions.
type SessionStore interface {
	Create(ctx context.Context, sessionID string, userID uint64, expiresAt time.Time, ip, userAgent string) error
	GetActive(ctx context.Context, sessionID string) (model.UserSession, error)
	Terminate(ctx context.Context, sessionID string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// TokenStore persists sealed token records with the insert-and-revoke-prior
// contract.
type TokenStore interface {
	CreateAndRevokePrior(ctx context.Context, userID uint64, sealedAccess, sealedRefresh, tokenType string, expiresAt *time.Time) error
	GetActiveByUser(ctx context.Context, userID uint64) (model.OAuthToken, error)
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
}

// StateStore persists one-time CSRF states. Consume must be atomic: of two
// concurrent calls for the same state, at most one succeeds.
type StateStore interface {
	Create(ctx context.Context, state string, expiresAt time.Time, ip, userAgent string) error
	Consume(ctx context.Context, state string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// ExchangeCodeStore persists one-time exchange codes; same atomic-consume
// contract as StateStore.
type ExchangeCodeStore interface {
	Create(ctx context.Context, code string, userID uint64, expiresAt time.Time) error
	Consume(ctx context.Context, code string) (uint64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// AuditStore appends audit events.
type AuditStore interface {
	Insert(ctx context.Context, ev model.AuditEvent) error
}

// Provider is the identity-provider collaborator.
type Provider interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (provider.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (provider.TokenPair, error)
	FetchProfile(ctx context.Context, accessToken string) (provider.Profile, error)
}
