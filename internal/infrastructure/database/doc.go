// Package database provides SQLite connectivity for the sqlite storage backend.
//
// SensorHub persists identities and reading histories to flat JSON files by
// default. When storage.backend is "sqlite" both live in a single database
// file managed here instead:
//
//   - device_identities: hardware serial number to logical device id
//   - readings: append-only per-device reading history
//
// The connection runs in WAL mode with a single writer, which matches the
// one-mutex-per-store locking the identity and telemetry packages already do.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each version has a NNNN_description.up.sql file and
// an optional matching .down.sql file.
package database
