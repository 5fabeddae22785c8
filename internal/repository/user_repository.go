package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"credbroker/internal/model"
)

// UserRepo persists local user records mirroring external identities.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,external_user_id,email,first_name,last_name,is_active,created_at,updated_at,last_login_at"

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.ExternalUserID, &u.Email, &u.FirstName, &u.LastName,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByExternalID fetches a user by the provider-assigned id.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE external_user_id=? LIMIT 1", externalID))
}

// Upsert creates the user on first sight or refreshes the profile fields
// of an existing row, bumping last_login_at either way. The external id is
// immutable: it is only ever written on insert.
func (r *UserRepo) Upsert(ctx context.Context, externalID, email, firstName, lastName string) (model.User, error) {
	externalID = strings.TrimSpace(externalID)
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (external_user_id, email, first_name, last_name, last_login_at)
		 VALUES (?,?,?,?,UTC_TIMESTAMP())
		 ON DUPLICATE KEY UPDATE
		   email=VALUES(email), first_name=VALUES(first_name),
		   last_name=VALUES(last_name), last_login_at=UTC_TIMESTAMP()`,
		externalID, email, firstName, lastName)
	if err != nil {
		return model.User{}, err
	}
	return r.GetByExternalID(ctx, externalID)
}

// List returns users ordered by creation time, newest first.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var (
			u         model.User
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.ExternalUserID, &u.Email, &u.FirstName, &u.LastName,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &lastLogin); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLoginAt = &t
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
