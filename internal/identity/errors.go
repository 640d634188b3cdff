package identity

import "errors"

// Domain-specific errors for identity operations.
var (
	// ErrEmptySerial is returned when resolving a blank serial number.
	ErrEmptySerial = errors.New("identity: serial number is empty")

	// ErrPersistFailed is returned when a new binding could not be saved.
	// The in-memory registry is left unchanged, so the call can be retried.
	ErrPersistFailed = errors.New("identity: persisting registry failed")

	// ErrCorruptRegistry is returned by Load when stored bindings are not one-to-one.
	ErrCorruptRegistry = errors.New("identity: registry is not one-to-one")
)
