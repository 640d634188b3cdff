// Package handshake decides whether a serial port hosts a SensorHub device.
//
// A device announces itself with a single line after boot:
//
//	ARDUINO_READY   device is healthy and will stream readings
//	ARDUINO_ERROR   device booted but its sensors failed
//
// Opening a port resets most microcontrollers, so the prober waits a settle
// delay before reading exactly one line. Anything other than the two
// sentinels, including silence, counts as Unresponsive and the port is
// retried on the next discovery cycle.
package handshake
