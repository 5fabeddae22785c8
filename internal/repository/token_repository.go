package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credbroker/internal/model"
)

// TokenRepo persists sealed provider token pairs. The table is append-only
// in spirit: a refresh inserts a new row and marks the prior active rows
// revoked inside one transaction, which both enforces the single-active-row
// invariant and keeps a full refresh history.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// CreateAndRevokePrior inserts a sealed token pair and revokes every prior
// non-revoked record of the user in the same transaction. Either both
// writes land or neither does: a failed insert must not leave the user
// without any active token.
func (r *TokenRepo) CreateAndRevokePrior(ctx context.Context, userID uint64, sealedAccess, sealedRefresh, tokenType string, expiresAt *time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		"UPDATE oauth_tokens SET is_revoked=1 WHERE user_id=? AND is_revoked=0",
		userID); err != nil {
		return err
	}

	var exp interface{}
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}
	var refresh interface{}
	if sealedRefresh != "" {
		refresh = sealedRefresh
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO oauth_tokens (user_id, encrypted_access_token, encrypted_refresh_token, token_type, expires_at)
		 VALUES (?,?,?,?,?)`,
		userID, sealedAccess, refresh, tokenType, exp); err != nil {
		return err
	}

	return tx.Commit()
}

// GetActiveByUser returns the user's single non-revoked token record, or
// ErrNotFound if none exists.
func (r *TokenRepo) GetActiveByUser(ctx context.Context, userID uint64) (model.OAuthToken, error) {
	var (
		t       model.OAuthToken
		refresh sql.NullString
		exp     sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,user_id,encrypted_access_token,encrypted_refresh_token,token_type,expires_at,is_revoked,created_at,updated_at
		 FROM oauth_tokens WHERE user_id=? AND is_revoked=0
		 ORDER BY id DESC LIMIT 1`,
		userID).Scan(&t.ID, &t.UserID, &t.EncryptedAccessToken, &refresh, &t.TokenType,
		&exp, &t.IsRevoked, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OAuthToken{}, ErrNotFound
	}
	if err != nil {
		return model.OAuthToken{}, err
	}
	if refresh.Valid {
		t.EncryptedRefreshToken = refresh.String
	}
	if exp.Valid {
		e := exp.Time
		t.ExpiresAt = &e
	}
	return t, nil
}

// RevokeAllForUser marks every active record of the user revoked and
// returns how many rows were affected. No upstream call is made; the
// provider has no revocation endpoint.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE oauth_tokens SET is_revoked=1 WHERE user_id=? AND is_revoked=0", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
