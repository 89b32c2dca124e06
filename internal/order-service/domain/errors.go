package domain

import "errors"

var (
	// ErrInvalidInput marks a request rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState marks a transition that the current status does not allow.
	ErrInvalidState = errors.New("invalid state transition")

	ErrOrderNotFound = errors.New("order not found")

	// ErrConcurrentModification is returned by stores when the version read
	// before a save no longer matches the stored one.
	ErrConcurrentModification = errors.New("concurrent modification")
)
