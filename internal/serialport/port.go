package serialport

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// MaxLineLength bounds a single buffered line.
const MaxLineLength = 4096

const readChunk = 256

// Conn is a line-oriented serial connection.
type Conn interface {
	// ReadLine returns the next line with surrounding whitespace and invalid
	// UTF-8 removed. It returns ErrReadTimeout if no full line arrived within
	// the read timeout; any other error is fatal for the connection.
	ReadLine() (string, error)

	Close() error
}

// Opener opens a port by OS name.
type Opener interface {
	Open(name string, readTimeout time.Duration) (Conn, error)
}

// SerialOpener opens real ports at a fixed baud rate, 8N1.
type SerialOpener struct {
	BaudRate int
}

// NewOpener returns an Opener for the given baud rate.
func NewOpener(baudRate int) *SerialOpener {
	return &SerialOpener{BaudRate: baudRate}
}

// Open opens name and applies readTimeout to every underlying read.
func (o *SerialOpener) Open(name string, readTimeout time.Duration) (Conn, error) {
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("setting read timeout on %s: %w", name, err)
	}
	return NewLineConn(p), nil
}

// Port is the part of serial.Port a LineConn needs. A Read that returns
// (0, nil) is a timeout.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// LineConn splits a Port's byte stream into lines. ReadLine must be called
// from one goroutine at a time; Close may be called from any goroutine and
// unblocks a pending read.
//
// A line longer than MaxLineLength is reported once as ErrLineTooLong and the
// rest of it, up to and including its newline, is discarded.
type LineConn struct {
	port       Port
	buf        []byte
	discarding bool
	closed     atomic.Bool
}

// NewLineConn wraps port.
func NewLineConn(port Port) *LineConn {
	return &LineConn{port: port}
}

// ReadLine implements Conn.
func (c *LineConn) ReadLine() (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	chunk := make([]byte, readChunk)
	for {
		i := bytes.IndexByte(c.buf, '\n')
		switch {
		case c.discarding && i >= 0:
			c.buf = c.buf[i+1:]
			c.discarding = false
			continue
		case c.discarding:
			c.buf = c.buf[:0]
		case i >= 0:
			line := string(c.buf[:i])
			c.buf = c.buf[i+1:]
			return strings.TrimSpace(strings.ToValidUTF8(line, "")), nil
		case len(c.buf) > MaxLineLength:
			c.buf = c.buf[:0]
			c.discarding = true
			return "", ErrLineTooLong
		}

		n, err := c.port.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			continue
		}
		if c.closed.Load() {
			return "", ErrClosed
		}
		if err != nil {
			return "", err
		}
		return "", ErrReadTimeout
	}
}

// Close closes the underlying port. Further reads return ErrClosed.
func (c *LineConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.port.Close()
}
