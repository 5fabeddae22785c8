package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"credbroker/internal/model"
	"credbroker/internal/secret"
)

// AllowedUserAdminStore manages whitelist entries.
type AllowedUserAdminStore interface {
	Add(ctx context.Context, externalID, description, addedBy string) error
	Deactivate(ctx context.Context, externalID string) error
	List(ctx context.Context, includeInactive bool) ([]model.AllowedUser, error)
}

// UserLister lists local user records.
type UserLister interface {
	List(ctx context.Context, limit, offset int) ([]model.User, error)
}

// SessionAdminStore exposes the administrative session operations.
type SessionAdminStore interface {
	ListByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.UserSession, error)
	Terminate(ctx context.Context, sessionID string) error
	TerminateAllForUser(ctx context.Context, userID uint64) (int64, error)
}

// AuditReader lists recorded audit events.
type AuditReader interface {
	ListRecent(ctx context.Context, kind string, limit int) ([]model.AuditEvent, error)
}

// StatsReader reports aggregate counts for the admin dashboard.
type StatsReader interface {
	Counts(ctx context.Context) (model.Stats, error)
}

// AdminService backs the administrative surface: credential verification,
// short-lived bearer tokens, whitelist management, and listings. Whitelist
// removal does not touch existing sessions by itself; TerminateUserSessions
// exists so an operator can pair the two explicitly.
type AdminService struct {
	allowed  AllowedUserAdminStore
	users    UserLister
	sessions SessionAdminStore
	tokens   *TokenService
	auditLog AuditReader
	stats    StatsReader
	audit    *AuditService

	username     string
	passwordHash string
	jwtSecret    string
	tokenTTL     time.Duration
}

// AdminServiceDeps bundles the admin service's collaborators and settings.
type AdminServiceDeps struct {
	Allowed  AllowedUserAdminStore
	Users    UserLister
	Sessions SessionAdminStore
	Tokens   *TokenService
	AuditLog AuditReader
	Stats    StatsReader
	Audit    *AuditService

	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

func NewAdminService(d AdminServiceDeps) *AdminService {
	return &AdminService{
		allowed:      d.Allowed,
		users:        d.Users,
		sessions:     d.Sessions,
		tokens:       d.Tokens,
		auditLog:     d.AuditLog,
		stats:        d.Stats,
		audit:        d.Audit,
		username:     d.Username,
		passwordHash: d.PasswordHash,
		jwtSecret:    d.JWTSecret,
		tokenTTL:     d.TokenTTL,
	}
}

// VerifyCredentials checks the admin Basic Auth pair. Both comparisons run
// in constant time so a probe learns nothing from response latency.
func (a *AdminService) VerifyCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := secret.VerifySecret(a.passwordHash, password)
	return userOK && passOK
}

// IssueToken signs a short-lived HS256 bearer token for the admin, so the
// Basic credential does not ride on every request.
func (a *AdminService) IssueToken(ctx context.Context, req RequestInfo) (string, time.Time, error) {
	exp := time.Now().UTC().Add(a.tokenTTL)
	claims := jwt.MapClaims{
		"sub": a.username,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	a.audit.Record(ctx, model.AuditEvent{
		EventKind: model.EventAdminLogin,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})
	return signed, exp, nil
}

// VerifyToken validates an admin bearer token.
func (a *AdminService) VerifyToken(raw string) bool {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil || !tok.Valid {
		return false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	sub, _ := claims["sub"].(string)
	return subtle.ConstantTimeCompare([]byte(sub), []byte(a.username)) == 1
}

// AddAllowedUser whitelists an external id.
func (a *AdminService) AddAllowedUser(ctx context.Context, externalID, description string, req RequestInfo) error {
	if err := a.allowed.Add(ctx, externalID, description, a.username); err != nil {
		return err
	}
	a.audit.Record(ctx, model.AuditEvent{
		EventKind:      model.EventWhitelistAdded,
		ExternalUserID: externalID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		Success:        true,
	})
	return nil
}

// RemoveAllowedUser deactivates a whitelist entry. Existing sessions of
// that user keep working until they expire or an operator terminates them.
func (a *AdminService) RemoveAllowedUser(ctx context.Context, externalID string, req RequestInfo) error {
	if err := a.allowed.Deactivate(ctx, externalID); err != nil {
		return err
	}
	a.audit.Record(ctx, model.AuditEvent{
		EventKind:      model.EventWhitelistRemoved,
		ExternalUserID: externalID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		Success:        true,
	})
	return nil
}

// ListAllowedUsers returns whitelist entries.
func (a *AdminService) ListAllowedUsers(ctx context.Context, includeInactive bool) ([]model.AllowedUser, error) {
	return a.allowed.List(ctx, includeInactive)
}

// ListUsers returns local user records.
func (a *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return a.users.List(ctx, limit, offset)
}

// ListUserSessions returns a user's sessions.
func (a *AdminService) ListUserSessions(ctx context.Context, userID uint64, activeOnly bool) ([]model.UserSession, error) {
	return a.sessions.ListByUser(ctx, userID, activeOnly)
}

// TerminateSession deactivates one session by id; idempotent.
func (a *AdminService) TerminateSession(ctx context.Context, sessionID string) error {
	return a.sessions.Terminate(ctx, sessionID)
}

// TerminateUserSessions deactivates every active session of a user and
// revokes their token record; the explicit companion to whitelist removal.
func (a *AdminService) TerminateUserSessions(ctx context.Context, userID uint64) (int64, error) {
	n, err := a.sessions.TerminateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := a.tokens.Revoke(ctx, userID); err != nil {
		return n, err
	}
	return n, nil
}

// Statistics returns aggregate counts for the admin dashboard.
func (a *AdminService) Statistics(ctx context.Context) (model.Stats, error) {
	return a.stats.Counts(ctx)
}

// RecentAuditEvents lists recorded events, optionally filtered by kind.
func (a *AdminService) RecentAuditEvents(ctx context.Context, kind string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return a.auditLog.ListRecent(ctx, kind, limit)
}
