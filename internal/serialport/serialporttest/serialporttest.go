// Package serialporttest provides in-memory serial connections for tests.
package serialporttest

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sensorhub/internal/serialport"
)

// Step is one scripted ReadLine result.
type Step struct {
	Line string
	Err  error
}

// Conn is a scripted serialport.Conn. Once the script is exhausted ReadLine
// returns serialport.ErrReadTimeout, or Final if set.
type Conn struct {
	mu     sync.Mutex
	steps  []Step
	final  error
	closed bool
	done   chan struct{}

	// Pace is slept before each scripted step.
	Pace time.Duration
}

// NewConn returns a Conn that yields lines in order.
func NewConn(lines ...string) *Conn {
	steps := make([]Step, len(lines))
	for i, l := range lines {
		steps[i] = Step{Line: l}
	}
	return NewScript(steps...)
}

// NewScript returns a Conn that replays steps in order.
func NewScript(steps ...Step) *Conn {
	return &Conn{steps: steps, done: make(chan struct{})}
}

// ThenFail makes ReadLine return err once the script is exhausted.
func (c *Conn) ThenFail(err error) *Conn {
	c.mu.Lock()
	c.final = err
	c.mu.Unlock()
	return c
}

// ReadLine implements serialport.Conn.
func (c *Conn) ReadLine() (string, error) {
	if c.Pace > 0 {
		select {
		case <-time.After(c.Pace):
		case <-c.done:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", serialport.ErrClosed
	}
	if len(c.steps) == 0 {
		if c.final != nil {
			return "", c.final
		}
		c.mu.Unlock()
		// Simulate a read timeout without spinning.
		select {
		case <-time.After(time.Millisecond):
		case <-c.done:
		}
		c.mu.Lock()
		return "", serialport.ErrReadTimeout
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	return s.Line, s.Err
}

// Close implements serialport.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Remaining returns the number of unread scripted steps.
func (c *Conn) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}

// Opener hands out registered connections by port name.
type Opener struct {
	mu    sync.Mutex
	conns map[string][]serialport.Conn
	errs  map[string]error
	opens []string
}

// NewOpener returns an empty Opener. Opening an unregistered name fails.
func NewOpener() *Opener {
	return &Opener{
		conns: make(map[string][]serialport.Conn),
		errs:  make(map[string]error),
	}
}

// Add queues conn to be returned by the next Open of name. Multiple
// connections for the same name are handed out in order.
func (o *Opener) Add(name string, conn serialport.Conn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conns[name] = append(o.conns[name], conn)
}

// Fail makes every Open of name return err.
func (o *Opener) Fail(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[name] = err
}

// Open implements serialport.Opener.
func (o *Opener) Open(name string, _ time.Duration) (serialport.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opens = append(o.opens, name)
	if err := o.errs[name]; err != nil {
		return nil, err
	}
	queue := o.conns[name]
	if len(queue) == 0 {
		return nil, fmt.Errorf("opening %s: no such port", name)
	}
	o.conns[name] = queue[1:]
	return queue[0], nil
}

// Opens returns the names passed to Open, in call order.
func (o *Opener) Opens() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.opens))
	copy(out, o.opens)
	return out
}

// OpenCount returns how many times name was opened.
func (o *Opener) OpenCount(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, got := range o.opens {
		if got == name {
			n++
		}
	}
	return n
}

// Enumerator is a mutable serialport.Enumerator.
type Enumerator struct {
	mu    sync.Mutex
	ports []serialport.PortInfo
	err   error
}

// NewEnumerator returns an Enumerator listing ports.
func NewEnumerator(ports ...serialport.PortInfo) *Enumerator {
	return &Enumerator{ports: ports}
}

// Set replaces the listed ports.
func (e *Enumerator) Set(ports ...serialport.PortInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ports = ports
	e.err = nil
}

// SetError makes List fail with err.
func (e *Enumerator) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// List implements serialport.Enumerator.
func (e *Enumerator) List() ([]serialport.PortInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([]serialport.PortInfo, len(e.ports))
	copy(out, e.ports)
	return out, nil
}
