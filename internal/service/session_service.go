package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credbroker/internal/model"
	"credbroker/internal/repository"
	"credbroker/internal/secret"
)

// sessionTokenBytes sizes the random session id: 32 bytes = 256 bits.
const sessionTokenBytes = 32

// SessionService manages long-lived session handles. Sessions carry a
// fixed TTL set at creation; validation never slides the expiry, a
// deliberate tradeoff that keeps a stolen session id from living forever.
type SessionService struct {
	sessions SessionStore
	ttl      time.Duration
}

func NewSessionService(sessions SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{sessions: sessions, ttl: ttl}
}

// Create opens a session for the user and returns it.
func (s *SessionService) Create(ctx context.Context, userID uint64, ip, userAgent string) (model.UserSession, error) {
	sessionID, err := secret.RandomToken(sessionTokenBytes)
	if err != nil {
		return model.UserSession{}, fmt.Errorf("generate session id: %w", err)
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	if err := s.sessions.Create(ctx, sessionID, userID, expiresAt, ip, userAgent); err != nil {
		return model.UserSession{}, err
	}
	return model.UserSession{
		SessionID:      sessionID,
		UserID:         userID,
		IPAddress:      ip,
		UserAgent:      userAgent,
		IsActive:       true,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastActivityAt: now,
	}, nil
}

// Validate returns the session iff it exists, is active, and is not past
// its expiry. An expired session stays invalid permanently.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (model.UserSession, error) {
	sess, err := s.sessions.GetActive(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.UserSession{}, ErrInvalidSession
		}
		return model.UserSession{}, err
	}
	return sess, nil
}

// Terminate deactivates a session. Terminating an unknown session is not
// an error.
func (s *SessionService) Terminate(ctx context.Context, sessionID string) error {
	return s.sessions.Terminate(ctx, sessionID)
}

// PurgeExpired bulk-deactivates expired sessions; driven by an external
// schedule or the admin maintenance endpoint.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx)
}
