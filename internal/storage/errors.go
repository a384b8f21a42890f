package storage

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the acting principal may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput indicates the caller supplied data that breaks an entity invariant.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a duplicate or a stale expected version.
	ErrConflict = errors.New("conflict")
	// ErrBanned indicates the email belongs to a banned account.
	ErrBanned = errors.New("account banned")
)
