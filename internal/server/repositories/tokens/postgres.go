// Package tokens provides a PostgreSQL-backed repository for the BurnStore's
// short-lived file download tokens.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/dbx"
	"github.com/zerodrop/zerodrop/internal/server/models"
)

// PostgresRepository implements Repository over a *sql.DB. Consume needs a
// real transaction so it does not accept the generic dbx.DBTX.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to the given *sql.DB.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new token row.
func (r *PostgresRepository) Create(ctx context.Context, token *models.DownloadToken) error {
	query := `
		INSERT INTO download_tokens (token, file_id, created_at, expires_at, used, is_multi_use)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.Token, token.FileID, token.CreatedAt, token.ExpiresAt, token.Used, token.IsMultiUse)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume validates and, for single-use tokens, burns the token.
func (r *PostgresRepository) Consume(ctx context.Context, token string, now time.Time) (*models.DownloadToken, error) {
	var result *models.DownloadToken

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			SELECT token, file_id, created_at, expires_at, used, is_multi_use
			FROM download_tokens WHERE token = $1 FOR UPDATE
		`
		t := &models.DownloadToken{}
		err := tx.QueryRowContext(ctx, query, token).Scan(
			&t.Token, &t.FileID, &t.CreatedAt, &t.ExpiresAt, &t.Used, &t.IsMultiUse)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrUnauthorized
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !t.ExpiresAt.After(now) {
			return common.ErrUnauthorized
		}
		if !t.IsMultiUse && t.Used {
			return common.ErrUnauthorized
		}
		if !t.IsMultiUse {
			if _, uerr := tx.ExecContext(ctx, `UPDATE download_tokens SET used = true WHERE token = $1`, token); uerr != nil {
				return fmt.Errorf("db error: %w", uerr)
			}
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteExpired removes every token row whose expires_at is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM download_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// DeleteByFileID removes every token minted against fileID.
func (r *PostgresRepository) DeleteByFileID(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM download_tokens WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
