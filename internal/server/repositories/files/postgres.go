// Package files provides a PostgreSQL-backed repository for the BurnStore's
// file metadata. The encrypted bytes live in a blobstore; this package only
// tracks the row that describes them.
package files

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
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new file row.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, created_at, expires_at, file_name, size_bytes, chunk_bytes,
			total_chunks, iv_base, storage_path, encrypted_filename, filename_iv,
			encryption_salt, validation_salt, kdf_iterations, passphrase_hash,
			uploaded_chunks, finalized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.CreatedAt, file.ExpiresAt, file.FileName, file.SizeBytes, file.ChunkBytes,
		file.TotalChunks, nullableBytes(file.IVBase), file.StoragePath, nullableBytes(file.EncryptedFilename), nullableBytes(file.FilenameIV),
		nullableBytes(file.EncryptionSalt), nullableBytes(file.ValidationSalt), nullableInt(file.KDFIterations), nullableString(file.PassphraseHash),
		0, file.TotalChunks <= 1,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Peek returns file metadata by id, or common.ErrGone if the row is missing
// or already expired.
func (r *PostgresRepository) Peek(ctx context.Context, id string) (*models.File, error) {
	query := `
		SELECT id, created_at, expires_at, file_name, size_bytes, chunk_bytes, total_chunks,
			iv_base, storage_path, encrypted_filename, filename_iv,
			encryption_salt, validation_salt, kdf_iterations, passphrase_hash
		FROM files WHERE id = $1
	`
	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrGone
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !f.ExpiresAt.After(time.Now()) {
		return nil, common.ErrGone
	}
	return f, nil
}

func scanFile(row *sql.Row) (*models.File, error) {
	f := &models.File{}
	var encryptedFilename, filenameIV, encryptionSalt, validationSalt []byte
	var kdfIterations sql.NullInt64
	var passphraseHash sql.NullString
	err := row.Scan(
		&f.ID, &f.CreatedAt, &f.ExpiresAt, &f.FileName, &f.SizeBytes, &f.ChunkBytes, &f.TotalChunks,
		&f.IVBase, &f.StoragePath, &encryptedFilename, &filenameIV,
		&encryptionSalt, &validationSalt, &kdfIterations, &passphraseHash,
	)
	if err != nil {
		return nil, err
	}
	f.EncryptedFilename = encryptedFilename
	f.FilenameIV = filenameIV
	f.EncryptionSalt = encryptionSalt
	f.ValidationSalt = validationSalt
	f.KDFIterations = int(kdfIterations.Int64)
	f.PassphraseHash = passphraseHash.String
	return f, nil
}

// SetIVBase writes ivBase into id's metadata row. Re-running it with the
// same value (a retried chunk-0 request) is harmless.
func (r *PostgresRepository) SetIVBase(ctx context.Context, id string, ivBase []byte) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET iv_base = $2 WHERE id = $1`, id, ivBase)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrGone
	}
	return nil
}

// MarkChunkUploaded records that one more chunk has arrived for id and
// returns the new uploaded chunk count.
func (r *PostgresRepository) MarkChunkUploaded(ctx context.Context, id string) (int, error) {
	query := `UPDATE files SET uploaded_chunks = uploaded_chunks + 1 WHERE id = $1 RETURNING uploaded_chunks`
	var count int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrGone
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// Finalize deletes id's metadata row once every declared chunk has arrived,
// returning the chunk count so the caller can remove the matching blobs.
func (r *PostgresRepository) Finalize(ctx context.Context, id string) (int, error) {
	query := `
		DELETE FROM files WHERE id = $1 AND uploaded_chunks >= total_chunks
		RETURNING total_chunks
	`
	var totalChunks int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&totalChunks)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if qerr := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return 0, fmt.Errorf("db error: %w", qerr)
		}
		if exists {
			return 0, common.ErrValidation
		}
		return 0, common.ErrGone
	}
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return totalChunks, nil
}

// Delete removes id's metadata row unconditionally.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes and returns every file row whose expires_at is at
// or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) ([]*models.File, error) {
	query := `
		DELETE FROM files WHERE expires_at <= $1
		RETURNING id, created_at, expires_at, file_name, size_bytes, chunk_bytes, total_chunks,
			iv_base, storage_path, encrypted_filename, filename_iv,
			encryption_salt, validation_salt, kdf_iterations, passphrase_hash
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f := &models.File{}
		var encryptedFilename, filenameIV, encryptionSalt, validationSalt []byte
		var kdfIterations sql.NullInt64
		var passphraseHash sql.NullString
		if err := rows.Scan(
			&f.ID, &f.CreatedAt, &f.ExpiresAt, &f.FileName, &f.SizeBytes, &f.ChunkBytes, &f.TotalChunks,
			&f.IVBase, &f.StoragePath, &encryptedFilename, &filenameIV,
			&encryptionSalt, &validationSalt, &kdfIterations, &passphraseHash,
		); err != nil {
			return nil, err
		}
		f.EncryptedFilename = encryptedFilename
		f.FilenameIV = filenameIV
		f.EncryptionSalt = encryptionSalt
		f.ValidationSalt = validationSalt
		f.KDFIterations = int(kdfIterations.Int64)
		f.PassphraseHash = passphraseHash.String
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
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
