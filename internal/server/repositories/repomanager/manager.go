package repomanager

import (
	"context"
	"database/sql"

	"github.com/zerodrop/zerodrop/internal/dbx"
	"github.com/zerodrop/zerodrop/internal/server/repositories/files"
	"github.com/zerodrop/zerodrop/internal/server/repositories/notes"
	"github.com/zerodrop/zerodrop/internal/server/repositories/ratelimit"
	"github.com/zerodrop/zerodrop/internal/server/repositories/tokens"
)

// RepositoryManager vends repository implementations bound to a database
// handle and knows how to bring the schema up to date.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Notes(db *sql.DB) notes.Repository
	Files(db dbx.DBTX) files.Repository
	Tokens(db *sql.DB) tokens.Repository
	RateLimit(db dbx.DBTX) ratelimit.Repository
}
