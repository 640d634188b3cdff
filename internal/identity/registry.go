package identity

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// IDPrefix is prepended to the allocation counter to form a device id.
const IDPrefix = "device_"

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store persists the full serial number to id mapping.
type Store interface {
	// Load returns every stored binding. A store that has never been written
	// returns an empty map and no error.
	Load(ctx context.Context) (map[string]string, error)

	// Save durably records bindings, which always contains every binding
	// previously saved plus at most one new one.
	Save(ctx context.Context, bindings map[string]string) error
}

// Registry resolves hardware serial numbers to logical device ids.
type Registry struct {
	mu       sync.Mutex
	store    Store
	bySerial map[string]string
	byID     map[string]string
	logger   Logger
	onChange func(count int)
}

// NewRegistry creates an empty registry backed by store. Call Load to
// restore previously persisted bindings.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:    store,
		bySerial: make(map[string]string),
		byID:     make(map[string]string),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// OnChange registers a callback invoked (under the registry lock) with the
// new binding count after Load and after every new binding.
func (r *Registry) OnChange(fn func(count int)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Load replaces the in-memory bindings with the store's contents.
//
// Returns ErrCorruptRegistry (wrapped) if two serial numbers share an id
// or a binding has an empty serial or id.
func (r *Registry) Load(ctx context.Context) error {
	loaded, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	byID := make(map[string]string, len(loaded))
	for serial, id := range loaded {
		if serial == "" || id == "" {
			return fmt.Errorf("%w: empty serial or id in binding %q -> %q", ErrCorruptRegistry, serial, id)
		}
		if other, dup := byID[id]; dup {
			return fmt.Errorf("%w: %s bound to both %q and %q", ErrCorruptRegistry, id, other, serial)
		}
		byID[id] = serial
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySerial = maps.Clone(loaded)
	if r.bySerial == nil {
		r.bySerial = make(map[string]string)
	}
	r.byID = byID
	r.logger.Info("identity registry loaded", "devices", len(loaded))
	r.notify()
	return nil
}

// Resolve returns the id bound to serial, allocating and persisting a new
// one if serial has not been seen before.
//
// New ids are device_<count+1>. If that id is already taken (a hand-edited
// registry file can cause this) the counter advances to the next free id.
// The new binding is saved before it is committed in memory; if the save
// fails Resolve returns ErrPersistFailed and the registry is unchanged.
//
// Parameters:
//   - ctx: Context passed to the Store
//   - serial: Hardware serial number reported by the USB descriptor
//
// Returns:
//   - string: The logical device id
//   - error: ErrEmptySerial or ErrPersistFailed (wrapped)
func (r *Registry) Resolve(ctx context.Context, serial string) (string, error) {
	if serial == "" {
		return "", ErrEmptySerial
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.bySerial[serial]; ok {
		return id, nil
	}

	id := r.nextFreeID()
	next := maps.Clone(r.bySerial)
	next[serial] = id

	if err := r.store.Save(ctx, next); err != nil {
		r.logger.Error("persisting identity registry failed", "serial", serial, "device_id", id, "error", err)
		return "", fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	r.bySerial = next
	r.byID[id] = serial
	r.logger.Info("assigned device id", "serial", serial, "device_id", id)
	r.notify()
	return id, nil
}

// nextFreeID must be called with r.mu held.
func (r *Registry) nextFreeID() string {
	for n := len(r.bySerial) + 1; ; n++ {
		id := fmt.Sprintf("%s%d", IDPrefix, n)
		if _, taken := r.byID[id]; !taken {
			return id
		}
	}
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange(len(r.bySerial))
	}
}

// Lookup returns the id bound to serial without allocating.
func (r *Registry) Lookup(serial string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySerial[serial]
	return id, ok
}

// SerialFor returns the serial number bound to id.
func (r *Registry) SerialFor(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	serial, ok := r.byID[id]
	return serial, ok
}

// Count returns the number of bindings.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySerial)
}

// Entries returns a copy of every binding, serial number to id.
func (r *Registry) Entries() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.bySerial)
}
