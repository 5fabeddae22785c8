package model

import "time"

// User mirrors one external identity in the `users` table. The external
// user id is assigned by the identity provider, is unique, and never
// changes once the row is created. Profile fields are refreshed on every
// successful login. Users are deactivated, never hard-deleted.
//
// Fields:
//  ID             – primary key identifier.
//  ExternalUserID – unique id assigned by the identity provider.
//  Email          – profile email (may be empty).
//  FirstName      – profile first name.
//  LastName       – profile last name.
//  IsActive       – whether the account is active.
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
//  LastLoginAt    – last successful authorization (nullable).
type User struct {
	ID             uint64     // users.id
	ExternalUserID string     // users.external_user_id
	Email          string     // users.email
	FirstName      string     // users.first_name
	LastName       string     // users.last_name
	IsActive       bool       // users.is_active
	CreatedAt      time.Time  // users.created_at
	UpdatedAt      time.Time  // users.updated_at
	LastLoginAt    *time.Time // users.last_login_at (nullable)
}

// AllowedUser is a whitelist entry in the `allowed_users` table. Only
// external ids with an active entry may obtain a session; the whitelist
// is the sole authorization boundary of the broker. Entries are
// deactivated rather than deleted so the audit trail stays intact.
type AllowedUser struct {
	ID             uint64    // allowed_users.id
	ExternalUserID string    // allowed_users.external_user_id
	Description    string    // allowed_users.description (free-form note)
	AddedBy        string    // allowed_users.added_by
	IsActive       bool      // allowed_users.is_active
	CreatedAt      time.Time // allowed_users.created_at
	UpdatedAt      time.Time // allowed_users.updated_at
}
