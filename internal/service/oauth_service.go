package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credbroker/internal/model"
	"credbroker/internal/repository"
	"credbroker/internal/secret"
)

// oneTimeTokenBytes sizes CSRF states and exchange codes (256 bits).
const oneTimeTokenBytes = 32

// RequestInfo carries client metadata recorded alongside lifecycle events.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// OAuthService coordinates the full authorization-code flow: CSRF state,
// provider exchange, whitelist gate, user upsert, token storage, exchange
// code, and session establishment. It is the only component whose rules
// span multiple entities.
type OAuthService struct {
	users    UserStore
	allowed  AllowedUserStore
	states   StateStore
	codes    ExchangeCodeStore
	sessions *SessionService
	tokens   *TokenService
	prov     Provider
	audit    *AuditService
	log      *slog.Logger

	stateTTL    time.Duration
	exchangeTTL time.Duration
}

// OAuthServiceDeps bundles the coordinator's collaborators.
type OAuthServiceDeps struct {
	Users    UserStore
	Allowed  AllowedUserStore
	States   StateStore
	Codes    ExchangeCodeStore
	Sessions *SessionService
	Tokens   *TokenService
	Provider Provider
	Audit    *AuditService
	Logger   *slog.Logger

	StateTTL    time.Duration
	ExchangeTTL time.Duration
}

func NewOAuthService(d OAuthServiceDeps) *OAuthService {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &OAuthService{
		users:       d.Users,
		allowed:     d.Allowed,
		states:      d.States,
		codes:       d.Codes,
		sessions:    d.Sessions,
		tokens:      d.Tokens,
		prov:        d.Provider,
		audit:       d.Audit,
		log:         log,
		stateTTL:    d.StateTTL,
		exchangeTTL: d.ExchangeTTL,
	}
}

// BeginAuthorization issues a CSRF state and returns the provider
// authorization URL embedding it. No user identity is known yet.
func (o *OAuthService) BeginAuthorization(ctx context.Context, req RequestInfo) (redirectURL, state string, err error) {
	state, err = secret.RandomToken(oneTimeTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate state: %w", err)
	}
	expiresAt := time.Now().UTC().Add(o.stateTTL)
	if err = o.states.Create(ctx, state, expiresAt, req.IPAddress, req.UserAgent); err != nil {
		return "", "", err
	}
	o.audit.Record(ctx, model.AuditEvent{
		EventKind: model.EventAuthorizationInitiated,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})
	return o.prov.AuthorizeURL(state), state, nil
}

// HandleCallback processes the provider's redirect. On success it returns
// a one-time exchange code bound to the authorized user. A user rejected
// by the whitelist leaves no persisted credential behind: the token pair
// obtained from the provider is discarded and no user row is created.
func (o *OAuthService) HandleCallback(ctx context.Context, code, state string, req RequestInfo) (string, error) {
	if err := o.states.Consume(ctx, state); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			o.recordRejection(ctx, req, "", "invalid or expired state")
			return "", ErrInvalidState
		}
		return "", err
	}

	pair, err := o.prov.ExchangeCode(ctx, code)
	if err != nil {
		o.recordRejection(ctx, req, "", "code exchange failed")
		return "", err
	}

	profile, err := o.prov.FetchProfile(ctx, pair.AccessToken)
	if err != nil {
		o.recordRejection(ctx, req, "", "profile fetch failed")
		return "", err
	}

	allowed, err := o.allowed.IsAllowed(ctx, profile.ExternalUserID)
	if err != nil {
		return "", err
	}
	if !allowed {
		// The external id is audited; the token pair is dropped here and
		// never stored.
		o.recordRejection(ctx, req, profile.ExternalUserID, "not whitelisted")
		return "", ErrNotWhitelisted
	}

	user, err := o.users.Upsert(ctx, profile.ExternalUserID, profile.Email, profile.FirstName, profile.LastName)
	if err != nil {
		return "", err
	}

	if err := o.tokens.Store(ctx, user.ID, pair); err != nil {
		return "", err
	}

	exchangeCode, err := secret.RandomToken(oneTimeTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate exchange code: %w", err)
	}
	if err := o.codes.Create(ctx, exchangeCode, user.ID, time.Now().UTC().Add(o.exchangeTTL)); err != nil {
		return "", err
	}

	o.audit.Record(ctx, model.AuditEvent{
		EventKind:      model.EventAuthorizationSucceeded,
		UserID:         &user.ID,
		ExternalUserID: user.ExternalUserID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		Success:        true,
	})
	o.log.Info("authorization succeeded", "user_id", user.ID)
	return exchangeCode, nil
}

func (o *OAuthService) recordRejection(ctx context.Context, req RequestInfo, externalID, reason string) {
	o.audit.Record(ctx, model.AuditEvent{
		EventKind:      model.EventAuthorizationRejected,
		ExternalUserID: externalID,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		Success:        false,
		ErrorMessage:   reason,
	})
	o.log.Warn("authorization rejected", "reason", reason)
}

// RedeemExchangeCode trades a one-time exchange code for a session.
func (o *OAuthService) RedeemExchangeCode(ctx context.Context, code string, req RequestInfo) (model.UserSession, error) {
	userID, err := o.codes.Consume(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			return model.UserSession{}, ErrInvalidExchangeCode
		}
		return model.UserSession{}, err
	}

	sess, err := o.sessions.Create(ctx, userID, req.IPAddress, req.UserAgent)
	if err != nil {
		return model.UserSession{}, err
	}

	o.audit.Record(ctx, model.AuditEvent{
		EventKind: model.EventSessionCreated,
		UserID:    &userID,
		SessionID: sess.SessionID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})
	return sess, nil
}

// UserInfo validates the session and returns its owner's user record.
func (o *OAuthService) UserInfo(ctx context.Context, sessionID string) (model.User, error) {
	sess, err := o.sessions.Validate(ctx, sessionID)
	if err != nil {
		return model.User{}, err
	}
	return o.users.GetByID(ctx, sess.UserID)
}

// GetAccessToken validates the session and returns a valid access token
// for its owner, refreshing transparently when the stored one is expiring.
func (o *OAuthService) GetAccessToken(ctx context.Context, sessionID string) (AccessToken, error) {
	sess, err := o.sessions.Validate(ctx, sessionID)
	if err != nil {
		return AccessToken{}, err
	}
	return o.tokens.GetValid(ctx, sess.UserID)
}

// ForceRefresh validates the session and refreshes its owner's token
// regardless of the stored expiry.
func (o *OAuthService) ForceRefresh(ctx context.Context, sessionID string) (AccessToken, error) {
	sess, err := o.sessions.Validate(ctx, sessionID)
	if err != nil {
		return AccessToken{}, err
	}
	return o.tokens.ForceRefresh(ctx, sess.UserID)
}

// Logout revokes the session owner's token record and terminates the
// session. Logging out an unknown or already expired session is a no-op,
// matching the idempotent semantics of session termination.
func (o *OAuthService) Logout(ctx context.Context, sessionID string, req RequestInfo) error {
	sess, err := o.sessions.Validate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return nil
		}
		return err
	}

	if err := o.tokens.Revoke(ctx, sess.UserID); err != nil {
		return err
	}
	if err := o.sessions.Terminate(ctx, sessionID); err != nil {
		return err
	}

	o.audit.Record(ctx, model.AuditEvent{
		EventKind: model.EventLogout,
		UserID:    &sess.UserID,
		SessionID: sessionID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Success:   true,
	})
	return nil
}

// PurgeExpired sweeps expired sessions, states, and exchange codes. It is
// driven externally (cron or the admin maintenance endpoint), never from
// the request path.
func (o *OAuthService) PurgeExpired(ctx context.Context) (sessions, states, codes int64, err error) {
	if sessions, err = o.sessions.PurgeExpired(ctx); err != nil {
		return
	}
	if states, err = o.states.PurgeExpired(ctx); err != nil {
		return
	}
	codes, err = o.codes.PurgeExpired(ctx)
	return
}
