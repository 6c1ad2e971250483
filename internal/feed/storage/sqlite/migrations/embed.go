package migrations

import "embed"

// FS contains embedded SQLite migrations for feed storage.
//
//go:embed *.sql
var FS embed.FS
