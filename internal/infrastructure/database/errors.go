package database

import "errors"

// Domain-specific errors for database operations.
var (
	// ErrMigrationNotFound is returned when an applied version has no file to roll back with.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration is returned when rolling back a version without a .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down sql")
)
