package migrations

import "embed"

// FS contains the embedded SQLite migrations of the chronos schema.
//
//go:embed *.sql
var FS embed.FS
