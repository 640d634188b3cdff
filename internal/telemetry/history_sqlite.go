package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// SQLiteHistoryStore keeps histories in the readings table, one row per
// reading, keyed by (device_id, seq) where seq is the reading's position in
// the history.
type SQLiteHistoryStore struct {
	db *sql.DB

	mu     sync.Mutex
	stored map[string]int // rows known to be committed, per device
}

// NewSQLiteHistoryStore creates a store on an open, migrated database.
func NewSQLiteHistoryStore(db *sql.DB) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{db: db, stored: make(map[string]int)}
}

// LoadAll reads every history ordered by position.
func (s *SQLiteHistoryStore) LoadAll(ctx context.Context) (map[string][]Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT device_id, timestamp, hr, spo2, temp FROM readings ORDER BY device_id, seq")
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Reading)
	for rows.Next() {
		var id string
		var ts float64
		var r Reading
		if err := rows.Scan(&id, &ts, &r.HR, &r.SpO2, &r.Temp); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		r.Time = fromEpochSeconds(ts)
		out[id] = append(out[id], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	s.mu.Lock()
	for id, h := range out {
		s.stored[id] = len(h)
	}
	s.mu.Unlock()
	return out, nil
}

// Persist inserts the readings of history not yet stored, in one
// transaction. After a failed call the next call inserts the missed rows too.
func (s *SQLiteHistoryStore) Persist(ctx context.Context, id string, history []Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.stored[id]
	if from >= len(history) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is a no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO readings (device_id, seq, timestamp, hr, spo2, temp) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for seq := from; seq < len(history); seq++ {
		r := history[seq]
		if _, err := stmt.ExecContext(ctx, id, seq, r.Timestamp(), r.HR, r.SpO2, r.Temp); err != nil {
			return fmt.Errorf("inserting reading %s/%d: %w", id, seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing readings: %w", err)
	}

	s.stored[id] = len(history)
	return nil
}
