package discovery

import (
	"sort"
	"sync"
	"time"
)

// PortState describes a claimed port.
type PortState struct {
	Port     string    `json:"port"`
	DeviceID string    `json:"device_id"`
	Since    time.Time `json:"since"`
	Running  bool      `json:"running"`
}

// ActivePorts is the set of ports owned by a reader. A port is in the set
// at most once, so at most one reader runs per port.
type ActivePorts struct {
	mu    sync.Mutex
	ports map[string]PortState
	now   func() time.Time
}

// NewActivePorts creates an empty set.
func NewActivePorts() *ActivePorts {
	return &ActivePorts{
		ports: make(map[string]PortState),
		now:   time.Now,
	}
}

// Claim adds port for deviceID. It returns false if the port is already claimed.
func (a *ActivePorts) Claim(port, deviceID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.ports[port]; ok {
		return false
	}
	a.ports[port] = PortState{Port: port, DeviceID: deviceID, Since: a.now(), Running: true}
	return true
}

// MarkStopped records that the reader on port exited while keeping the claim.
func (a *ActivePorts) MarkStopped(port string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if st, ok := a.ports[port]; ok {
		st.Running = false
		a.ports[port] = st
	}
}

// Release removes port from the set.
func (a *ActivePorts) Release(port string) {
	a.mu.Lock()
	delete(a.ports, port)
	a.mu.Unlock()
}

// Contains reports whether port is claimed.
func (a *ActivePorts) Contains(port string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.ports[port]
	return ok
}

// Len returns the number of claimed ports.
func (a *ActivePorts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ports)
}

// List returns every claimed port sorted by port name.
func (a *ActivePorts) List() []PortState {
	a.mu.Lock()
	out := make([]PortState, 0, len(a.ports))
	for _, st := range a.ports {
		out = append(out, st)
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// ByDevice returns the most recently claimed port state for deviceID.
func (a *ActivePorts) ByDevice(deviceID string) (PortState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var best PortState
	found := false
	for _, st := range a.ports {
		if st.DeviceID != deviceID {
			continue
		}
		if !found || st.Since.After(best.Since) {
			best = st
			found = true
		}
	}
	return best, found
}
