package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/zerodrop/zerodrop/internal/client/history/migrations"
)

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("history: set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the local history database at dsn,
// applies migrations, and returns a Repository bound to it along with the
// underlying *sql.DB so the caller can close it on exit.
func Open(ctx context.Context, dsn string) (Repository, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("history: open %s: %w", dsn, err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return NewSQLiteRepository(db), db, nil
}
