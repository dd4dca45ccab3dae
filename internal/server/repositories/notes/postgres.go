// Package notes provides a PostgreSQL-backed repository for the BurnStore's
// text secrets, including the atomic burn-on-read semantics that give the
// service its name.
package notes

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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to the given *sql.DB.
// BurnAndFetch needs a real transaction (row locking) so it takes a *sql.DB
// rather than the generic dbx.DBTX used by the other methods.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new note row.
func (r *PostgresRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (id, ciphertext, iv, created_at, expires_at, views_left,
			encryption_salt, validation_salt, kdf_iterations, passphrase_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		note.ID, note.Ciphertext, note.IV, note.CreatedAt, note.ExpiresAt, note.ViewsLeft,
		nullableBytes(note.EncryptionSalt), nullableBytes(note.ValidationSalt), nullableInt(note.KDFIterations), nullableString(note.PassphraseHash),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Peek returns note metadata without consuming a view.
func (r *PostgresRepository) Peek(ctx context.Context, id string) (*models.Note, error) {
	return peekTx(ctx, r.db, id)
}

func peekTx(ctx context.Context, db dbx.DBTX, id string) (*models.Note, error) {
	query := `
		SELECT id, ciphertext, iv, created_at, expires_at, views_left,
			encryption_salt, validation_salt, kdf_iterations, passphrase_hash
		FROM notes WHERE id = $1
	`
	n := &models.Note{}
	var kdfIterations sql.NullInt64
	var passphraseHash sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.Ciphertext, &n.IV, &n.CreatedAt, &n.ExpiresAt, &n.ViewsLeft,
		&n.EncryptionSalt, &n.ValidationSalt, &kdfIterations, &passphraseHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrGone
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	n.KDFIterations = int(kdfIterations.Int64)
	n.PassphraseHash = passphraseHash.String
	return n, nil
}

// BurnAndFetch atomically decrements views_left and deletes the row when it
// reaches zero, all inside a single row-locked transaction.
func (r *PostgresRepository) BurnAndFetch(ctx context.Context, id string, now time.Time) (*models.Note, error) {
	var result *models.Note
	var expired bool

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lockQuery := `
			SELECT id, ciphertext, iv, created_at, expires_at, views_left,
				encryption_salt, validation_salt, kdf_iterations, passphrase_hash
			FROM notes WHERE id = $1 FOR UPDATE
		`
		n := &models.Note{}
		var kdfIterations sql.NullInt64
		var passphraseHash sql.NullString
		err := tx.QueryRowContext(ctx, lockQuery, id).Scan(
			&n.ID, &n.Ciphertext, &n.IV, &n.CreatedAt, &n.ExpiresAt, &n.ViewsLeft,
			&n.EncryptionSalt, &n.ValidationSalt, &kdfIterations, &passphraseHash,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrGone
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n.KDFIterations = int(kdfIterations.Int64)
		n.PassphraseHash = passphraseHash.String

		if !n.ExpiresAt.After(now) {
			if _, derr := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id); derr != nil {
				return fmt.Errorf("db error: %w", derr)
			}
			// Delete commits; the gone status is reported after the
			// transaction closes so the cleanup is not rolled back.
			expired = true
			return nil
		}

		if n.ViewsLeft <= 1 {
			if _, derr := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id); derr != nil {
				return fmt.Errorf("db error: %w", derr)
			}
		} else {
			if _, uerr := tx.ExecContext(ctx, `UPDATE notes SET views_left = views_left - 1 WHERE id = $1`, id); uerr != nil {
				return fmt.Errorf("db error: %w", uerr)
			}
		}

		result = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrGone
	}
	return result, nil
}

// DeleteExpired removes all notes whose expires_at is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func nullableBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
