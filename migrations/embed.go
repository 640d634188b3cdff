// Package migrations embeds the SQLite schema used by the sqlite storage backend.
package migrations

import "embed"

// FS holds every NNNN_name.{up,down}.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
