// Package migrations embeds SQL migration files for database schema management.
//
// Files follow golang-migrate's NNNNNN_name.up.sql/.down.sql convention.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
