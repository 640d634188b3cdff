// Package serialport is SensorHub's serial transport: opening ports as
// line-oriented connections and enumerating the ports currently attached.
//
// Conn reads newline-terminated lines with a per-read timeout. A timeout is
// reported as ErrReadTimeout and is not fatal: bytes of a line that arrived
// before the timeout stay buffered and are returned with the rest of the
// line on a later call. Any other error means the port is gone.
//
// The production implementations use go.bug.st/serial and its enumerator
// package. Package serialporttest provides scripted fakes for tests.
package serialport
