// Package migrations embeds the SQL schema migrations into the binary.
//
// The show core runs migrations at startup without needing the SQL files
// on disk. Pass FS to database.DB.Migrate.
package migrations

import "embed"

// FS holds every *.sql file in this directory at its root.
//
//go:embed *.sql
var FS embed.FS
