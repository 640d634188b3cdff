package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Store.
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

// HistoryStore persists device histories.
type HistoryStore interface {
	// LoadAll returns every persisted history keyed by device id.
	LoadAll(ctx context.Context) (map[string][]Reading, error)

	// Persist makes history (the complete, arrival-ordered history of id)
	// durable. It is called with the Store lock held and must not retain
	// the slice after returning.
	Persist(ctx context.Context, id string, history []Reading) error
}

// Store holds every device's reading history.
//
// One mutex serialises all access, and Append holds it across the
// HistoryStore call, so two writes for the same device never interleave and
// a snapshot never observes a reading that has not been persisted (or
// failed to persist) yet.
type Store struct {
	mu        sync.Mutex
	histories map[string][]Reading
	persist   HistoryStore
	logger    Logger
}

// NewStore creates an empty store backed by persist.
func NewStore(persist HistoryStore) *Store {
	return &Store{
		histories: make(map[string][]Reading),
		persist:   persist,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Load replaces in-memory histories with everything the HistoryStore holds.
// Call once at start-up before readers run.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.persist.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading histories: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[string][]Reading, len(loaded))
	total := 0
	for id, h := range loaded {
		s.histories[id] = h
		total += len(h)
	}
	s.logger.Info("reading histories loaded", "devices", len(loaded), "readings", total)
	return nil
}

// Append adds r to the end of id's history and persists that history before
// returning.
//
// If persistence fails the reading stays in memory (it will be written by the
// next successful persist of the same device) and ErrPersistFailed is
// returned wrapped around the cause. Callers should treat that as a
// retryable warning, not a reason to stop.
func (s *Store) Append(ctx context.Context, id string, r Reading) error {
	if !validDeviceID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories[id] = append(s.histories[id], r)
	if err := s.persist.Persist(ctx, id, s.histories[id]); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistFailed, id, err)
	}
	return nil
}

// Snapshot returns a copy of id's history in arrival order. An unknown id
// yields an empty, non-nil slice.
func (s *Store) Snapshot(id string) []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[id]
	out := make([]Reading, len(h))
	copy(out, h)
	return out
}

// Len returns the number of readings held for id.
func (s *Store) Len(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories[id])
}

// Latest returns the most recent reading for id.
func (s *Store) Latest(id string) (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[id]
	if len(h) == 0 {
		return Reading{}, false
	}
	return h[len(h)-1], true
}

// IDs returns every device id with a history, sorted. Never nil.
func (s *Store) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// validDeviceID rejects ids that could escape the data directory or would be
// skipped on reload.
func validDeviceID(id string) bool {
	return id != "" && id[0] != '.' && !strings.ContainsAny(id, "/\\\x00")
}
