// Package migrations embeds the goose SQL migrations for the local
// recent-shares SQLite database so the CLI binary carries them without a
// separate file tree on disk.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
