// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/zerodrop/zerodrop/internal/dbx"
	"github.com/zerodrop/zerodrop/internal/server/migrations"
	"github.com/zerodrop/zerodrop/internal/server/repositories/files"
	"github.com/zerodrop/zerodrop/internal/server/repositories/notes"
	"github.com/zerodrop/zerodrop/internal/server/repositories/ratelimit"
	"github.com/zerodrop/zerodrop/internal/server/repositories/tokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Notes returns a notes.Repository bound to the provided database.
func (m *PostgresRepositoryManager) Notes(db *sql.DB) notes.Repository {
	return notes.NewPostgresRepository(db)
}

// Files returns a files.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

// Tokens returns a tokens.Repository bound to the provided database.
func (m *PostgresRepositoryManager) Tokens(db *sql.DB) tokens.Repository {
	return tokens.NewPostgresRepository(db)
}

// RateLimit returns a ratelimit.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RateLimit(db dbx.DBTX) ratelimit.Repository {
	return ratelimit.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
