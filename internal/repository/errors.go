// Package repository implements data access for the broker's entities on
// top of database/sql. Sentinel errors defined here let the service layer
// distinguish failure scenarios without inspecting driver errors. Every
// multi-step write the broker describes as atomic is implemented either as
// a single conditional statement or inside one transaction.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Services
// translate it into their own domain errors (invalid session, no token).
var ErrNotFound = errors.New("not found")

// ErrAlreadyConsumed is returned when a one-time token (CSRF state or
// exchange code) is absent, expired, or was already redeemed. The
// conditional UPDATE that consumes a token cannot tell these cases apart,
// and deliberately so: callers get the same answer either way.
var ErrAlreadyConsumed = errors.New("token absent, expired, or already consumed")

// ErrDuplicate is returned when a unique constraint rejects an insert,
// such as adding a whitelist entry for an id that already has one.
var ErrDuplicate = errors.New("duplicate entry")
