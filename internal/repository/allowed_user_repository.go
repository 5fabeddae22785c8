package repository

import (
	"context"
	"database/sql"
	"strings"

	"credbroker/internal/model"
)

// AllowedUserRepo reads and manages the whitelist. The broker core only
// calls IsAllowed; the mutation methods serve the admin surface.
type AllowedUserRepo struct{ DB *sql.DB }

func NewAllowedUserRepo(db *sql.DB) *AllowedUserRepo { return &AllowedUserRepo{DB: db} }

// IsAllowed reports whether an active whitelist entry exists for the
// external id. This is the sole authorization boundary, so it always hits
// the database; no caching.
func (r *AllowedUserRepo) IsAllowed(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM allowed_users WHERE external_user_id=? AND is_active=1 LIMIT 1",
		externalID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts a whitelist entry, reactivating a previously deactivated one
// for the same external id.
func (r *AllowedUserRepo) Add(ctx context.Context, externalID, description, addedBy string) error {
	externalID = strings.TrimSpace(externalID)
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO allowed_users (external_user_id, description, added_by)
		 VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE
		   description=VALUES(description), added_by=VALUES(added_by), is_active=1`,
		externalID, description, addedBy)
	return err
}

// Deactivate disables a whitelist entry. The entry is kept so the history
// of who was ever allowed remains queryable. Deactivating an unknown or
// already inactive id returns ErrNotFound.
func (r *AllowedUserRepo) Deactivate(ctx context.Context, externalID string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE allowed_users SET is_active=0 WHERE external_user_id=? AND is_active=1",
		externalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns whitelist entries, optionally including deactivated ones.
func (r *AllowedUserRepo) List(ctx context.Context, includeInactive bool) ([]model.AllowedUser, error) {
	q := "SELECT id,external_user_id,COALESCE(description,''),added_by,is_active,created_at,updated_at FROM allowed_users"
	if !includeInactive {
		q += " WHERE is_active=1"
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.AllowedUser
	for rows.Next() {
		var a model.AllowedUser
		if err := rows.Scan(&a.ID, &a.ExternalUserID, &a.Description, &a.AddedBy,
			&a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}
