// Package service implements the broker core: the audit sink, session
// manager, token vault, OAuth coordinator, and the administrative surface.
// Services accept narrow store interfaces so the storage engine stays an
// external collaborator.
package service

import "errors"

// Sentinel errors of the broker core. Handlers match them with errors.Is
// and translate them into client-visible responses; none of them ever
// carries token or secret material in its message.
var (
	// ErrInvalidState rejects a callback whose CSRF state is absent,
	// expired, or already consumed.
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrInvalidExchangeCode rejects a session request whose exchange code
	// is absent, expired, or already redeemed.
	ErrInvalidExchangeCode = errors.New("invalid or expired exchange code")

	// ErrInvalidSession rejects any operation on an unknown, terminated,
	// or expired session.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrNotWhitelisted rejects an authorization by a user without an
	// active whitelist entry.
	ErrNotWhitelisted = errors.New("user is not whitelisted")

	// ErrNoToken means the user holds no active token record.
	ErrNoToken = errors.New("no active token for user")

	// ErrRefreshFailed means the upstream refresh did not succeed; the
	// stored record was left unchanged.
	ErrRefreshFailed = errors.New("token refresh failed")
)
