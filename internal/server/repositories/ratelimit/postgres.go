// Package ratelimit provides a PostgreSQL-backed timestamp log used by the
// sliding-window rate limiter.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zerodrop/zerodrop/internal/dbx"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record inserts one timestamp entry for key/ip.
func (r *PostgresRepository) Record(ctx context.Context, key, ip string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limits (key, ip_address, ts) VALUES ($1, $2, $3)`, key, ip, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CountSince returns the number of entries recorded for key/ip at or after since.
func (r *PostgresRepository) CountSince(ctx context.Context, key, ip string, since time.Time) (int, error) {
	var count int
	query := `SELECT count(*) FROM rate_limits WHERE key = $1 AND ip_address = $2 AND ts >= $3`
	if err := r.db.QueryRowContext(ctx, query, key, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// OldestSince returns the timestamp of the oldest entry for key/ip at or
// after since, or the zero time if no such entry exists.
func (r *PostgresRepository) OldestSince(ctx context.Context, key, ip string, since time.Time) (time.Time, error) {
	var oldest sql.NullTime
	query := `SELECT min(ts) FROM rate_limits WHERE key = $1 AND ip_address = $2 AND ts >= $3`
	if err := r.db.QueryRowContext(ctx, query, key, ip, since).Scan(&oldest); err != nil {
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, nil
	}
	return oldest.Time, nil
}

// DeleteOlderThan removes entries recorded before cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
