package room

import "errors"

// Sentinel errors for room operations.
var (
	// ErrNotFound indicates the requested room does not exist.
	ErrNotFound = errors.New("room: not found")

	// ErrNameRequired indicates a room was submitted without a name.
	ErrNameRequired = errors.New("room: name is required")
)
