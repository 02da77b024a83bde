package key

import "errors"

// Sentinel errors for key and key user operations.
var (
	// ErrUserNotFound indicates the requested key user does not exist.
	ErrUserNotFound = errors.New("key: user not found")

	// ErrKeyNotFound indicates the requested key does not exist.
	ErrKeyNotFound = errors.New("key: not found")

	// ErrKeyIDTaken indicates the RFID tag is already registered.
	ErrKeyIDTaken = errors.New("key: tag already registered")

	// ErrUserHasKey indicates the user already holds a key.
	ErrUserHasKey = errors.New("key: user already holds a key")

	// ErrNameRequired indicates a key user was submitted without a name.
	ErrNameRequired = errors.New("key: user name is required")

	// ErrTagRequired indicates a key was submitted without an RFID tag.
	ErrTagRequired = errors.New("key: tag is required")
)
