package engine

import "errors"

var (
	// ErrCallNotFound is returned for operations on unknown or already
	// archived calls.
	ErrCallNotFound = errors.New("call session not found")

	// ErrCallAlreadyExists is returned when starting a call whose ID is
	// already being analyzed.
	ErrCallAlreadyExists = errors.New("call session already exists")

	// ErrInvalidCallState is returned when an operation is requested in a
	// phase that does not permit it. Reported to the caller, never retried.
	ErrInvalidCallState = errors.New("invalid call state for operation")
)
