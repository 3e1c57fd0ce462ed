package domain

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input; no mutation is performed.
	ErrValidation = errors.New("validation error")
	// ErrInvalidState is returned when an operation is not legal for the
	// record's current status; no mutation is performed.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict is returned when a conditional write loses a concurrent
	// race; the caller must re-read or skip, never re-apply blindly.
	ErrConflict = errors.New("conflict")
)
