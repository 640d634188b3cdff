package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore keeps bindings in the device_identities table.
//
// Bindings are append-only, so Save only inserts rows for serial numbers
// that are not stored yet.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns every row of device_identities.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT serial_number, device_id FROM device_identities")
	if err != nil {
		return nil, fmt.Errorf("querying device identities: %w", err)
	}
	defer rows.Close()

	bindings := map[string]string{}
	for rows.Next() {
		var serial, id string
		if err := rows.Scan(&serial, &id); err != nil {
			return nil, fmt.Errorf("scanning device identity: %w", err)
		}
		bindings[serial] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device identities: %w", err)
	}
	return bindings, nil
}

// Save inserts any binding not already present, in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, bindings map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is a no-op after commit

	for serial, id := range bindings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO device_identities (serial_number, device_id) VALUES (?, ?) ON CONFLICT(serial_number) DO NOTHING",
			serial, id,
		); err != nil {
			return fmt.Errorf("inserting device identity %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device identities: %w", err)
	}
	return nil
}
