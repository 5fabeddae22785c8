package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"credbroker/internal/model"
	"credbroker/internal/provider"
	"credbroker/internal/repository"
	"credbroker/internal/secret"
)

// AccessToken is the plain result handed to the transport layer.
type AccessToken struct {
	Token     string
	ExpiresAt *time.Time // nil when the provider reported no expiry
}

// TokenService is the token vault. It seals provider token pairs at rest,
// hands out valid access tokens, and refreshes expiring ones against the
// provider. Refreshes are single-flight per user: concurrent callers share
// one upstream call, because duplicate refreshes can invalidate a rotating
// refresh token at the provider and silently lock the user out.
type TokenService struct {
	tokens TokenStore
	prov   Provider
	sealer *secret.Sealer
	audit  *AuditService
	skew   time.Duration

	group singleflight.Group
}

func NewTokenService(tokens TokenStore, prov Provider, sealer *secret.Sealer, audit *AuditService, skew time.Duration) *TokenService {
	return &TokenService{tokens: tokens, prov: prov, sealer: sealer, audit: audit, skew: skew}
}

// Store seals both tokens and persists them, revoking every prior active
// record of the user in the same transaction.
func (t *TokenService) Store(ctx context.Context, userID uint64, pair provider.TokenPair) error {
	sealedAccess, err := t.sealer.Seal(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	var sealedRefresh string
	if pair.RefreshToken != "" {
		if sealedRefresh, err = t.sealer.Seal(pair.RefreshToken); err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
	}
	var expiresAt *time.Time
	if !pair.ExpiresAt.IsZero() {
		e := pair.ExpiresAt.UTC()
		expiresAt = &e
	}
	return t.tokens.CreateAndRevokePrior(ctx, userID, sealedAccess, sealedRefresh, pair.TokenType, expiresAt)
}

// GetValid returns a usable access token for the user. A token inside its
// validity window (minus the configured skew) is decrypted and returned
// directly; an expiring one is refreshed first. Refresh is tried once,
// never looped.
func (t *TokenService) GetValid(ctx context.Context, userID uint64) (AccessToken, error) {
	rec, err := t.tokens.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AccessToken{}, ErrNoToken
		}
		return AccessToken{}, err
	}
	if t.fresh(rec) {
		return t.open(ctx, userID, rec)
	}
	return t.refresh(ctx, userID, false)
}

// ForceRefresh refreshes regardless of the stored expiry. Clients call
// this when the upstream API itself starts rejecting the token.
func (t *TokenService) ForceRefresh(ctx context.Context, userID uint64) (AccessToken, error) {
	return t.refresh(ctx, userID, true)
}

// Revoke marks the user's active record revoked. No upstream call is made.
func (t *TokenService) Revoke(ctx context.Context, userID uint64) error {
	_, err := t.tokens.RevokeAllForUser(ctx, userID)
	return err
}

// fresh reports whether the record's access token is still comfortably
// inside its validity window.
func (t *TokenService) fresh(rec model.OAuthToken) bool {
	if rec.ExpiresAt == nil {
		return true
	}
	return time.Now().UTC().Before(rec.ExpiresAt.Add(-t.skew))
}

// open decrypts the stored access token. A failed authentication check is
// a data-integrity event: it is audited and surfaced, never retried and
// never silently turned into a re-authorization.
func (t *TokenService) open(ctx context.Context, userID uint64, rec model.OAuthToken) (AccessToken, error) {
	access, err := t.sealer.Open(rec.EncryptedAccessToken)
	if err != nil {
		t.audit.Record(ctx, model.AuditEvent{
			EventKind:    model.EventTokenIntegrityFailure,
			UserID:       &userID,
			Success:      false,
			ErrorMessage: "stored access token failed decryption",
		})
		return AccessToken{}, err
	}
	return AccessToken{Token: access, ExpiresAt: rec.ExpiresAt}, nil
}

// refresh performs the upstream refresh under a per-user single-flight
// guard. The guard is held only for the upstream call plus the store
// write and is released on every exit path. All-or-nothing: on upstream
// failure the stored record is left untouched.
func (t *TokenService) refresh(ctx context.Context, userID uint64, force bool) (AccessToken, error) {
	v, err, _ := t.group.Do(strconv.FormatUint(userID, 10), func() (interface{}, error) {
		rec, err := t.tokens.GetActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoToken
			}
			return nil, err
		}
		// A flight that just finished may have refreshed for us already.
		if !force && t.fresh(rec) {
			return t.open(ctx, userID, rec)
		}
		if rec.EncryptedRefreshToken == "" {
			t.audit.Record(ctx, model.AuditEvent{
				EventKind:    model.EventTokenRefreshFailed,
				UserID:       &userID,
				Success:      false,
				ErrorMessage: "no refresh token on record",
			})
			return nil, ErrRefreshFailed
		}
		refreshTok, err := t.sealer.Open(rec.EncryptedRefreshToken)
		if err != nil {
			t.audit.Record(ctx, model.AuditEvent{
				EventKind:    model.EventTokenIntegrityFailure,
				UserID:       &userID,
				Success:      false,
				ErrorMessage: "stored refresh token failed decryption",
			})
			return nil, err
		}

		pair, err := t.prov.RefreshToken(ctx, refreshTok)
		if err != nil {
			t.audit.Record(ctx, model.AuditEvent{
				EventKind:    model.EventTokenRefreshFailed,
				UserID:       &userID,
				Success:      false,
				ErrorMessage: "upstream refresh rejected",
			})
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}
		if pair.RefreshToken == "" {
			// Provider did not rotate; keep the one we have.
			pair.RefreshToken = refreshTok
		}
		if err := t.Store(ctx, userID, pair); err != nil {
			return nil, err
		}
		t.audit.Record(ctx, model.AuditEvent{
			EventKind: model.EventTokenRefreshed,
			UserID:    &userID,
			Success:   true,
		})

		var expiresAt *time.Time
		if !pair.ExpiresAt.IsZero() {
			e := pair.ExpiresAt.UTC()
			expiresAt = &e
		}
		return AccessToken{Token: pair.AccessToken, ExpiresAt: expiresAt}, nil
	})
	if err != nil {
		return AccessToken{}, err
	}
	return v.(AccessToken), nil
}
