package telemetry

import "errors"

// Domain-specific errors for telemetry operations.
var (
	// ErrMalformedLine is returned by ParseLine for lines that cannot become a Reading.
	ErrMalformedLine = errors.New("telemetry: malformed line")

	// ErrPersistFailed is returned by Store.Append when the reading was kept
	// in memory but could not be written to durable storage.
	ErrPersistFailed = errors.New("telemetry: persisting history failed")

	// ErrInvalidDeviceID is returned for ids that cannot name a history file.
	ErrInvalidDeviceID = errors.New("telemetry: invalid device id")
)
