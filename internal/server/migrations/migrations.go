// Package migrations embeds the goose SQL migrations for the BurnStore
// schema so the server binary carries them without a separate file tree
// on disk.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
