// Package migrations embeds the schema migration files so the binary
// carries its own schema and needs no migrations directory at runtime.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
