// Package migrations embeds the SQL schema migrations applied by the server
// at startup (and by ops tooling) through goose.
package migrations

import "embed"

// FS holds the goose migration files.
//
//go:embed *.sql
var FS embed.FS
