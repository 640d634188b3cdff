package serialport

import "errors"

// Domain-specific errors for serial operations.
var (
	// ErrReadTimeout is returned by ReadLine when no complete line arrived in time.
	ErrReadTimeout = errors.New("serialport: read timeout")

	// ErrLineTooLong is returned when a line exceeds MaxLineLength without a newline.
	// The oversized bytes are discarded.
	ErrLineTooLong = errors.New("serialport: line too long")

	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("serialport: connection closed")
)
