package serialport

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one attached serial port.
type PortInfo struct {
	// Name is the OS path, e.g. /dev/ttyACM0. It is not stable across replugs.
	Name string

	// SerialNumber is the USB descriptor serial; empty for ports without one.
	SerialNumber string

	IsUSB   bool
	VID     string
	PID     string
	Product string
}

// Enumerator lists the serial ports currently attached.
type Enumerator interface {
	List() ([]PortInfo, error)
}

// USBEnumerator lists ports using go.bug.st/serial/enumerator.
type USBEnumerator struct{}

// List implements Enumerator.
func (USBEnumerator) List() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}

	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:         p.Name,
			SerialNumber: p.SerialNumber,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			Product:      p.Product,
		})
	}
	return out, nil
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func() ([]PortInfo, error)

// List calls f.
func (f EnumeratorFunc) List() ([]PortInfo, error) {
	return f()
}
