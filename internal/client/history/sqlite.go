package history

import (
	"context"
	"fmt"
	"time"

	"github.com/zerodrop/zerodrop/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, s *Share) error {
	query := `INSERT INTO shares (id, kind, label, content_key, server_url, created_at, expires_at, deleted)
			values (?, ?, ?, ?, ?, ?, ?, 0)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, string(s.Kind), s.Label, s.ContentKey, s.ServerURL, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Share, error) {
	query := `select id, kind, label, content_key, server_url, created_at, expires_at
			from shares where deleted=0 order by created_at desc`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}
	defer rows.Close()

	var result []Share
	for rows.Next() {
		var s Share
		var kind string
		if err := rows.Scan(&s.ID, &kind, &s.Label, &s.ContentKey, &s.ServerURL, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, err
		}
		s.Kind = Kind(kind)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Share, error) {
	query := `select id, kind, label, content_key, server_url, created_at, expires_at
			from shares where deleted=0 and id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	var s Share
	var kind string
	if err := row.Scan(&s.ID, &kind, &s.Label, &s.ContentKey, &s.ServerURL, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to query share: %w", err)
	}
	s.Kind = Kind(kind)
	return &s, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	query := `update shares set deleted=1 where id=? and deleted=0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `update shares set deleted=1 where deleted=0 and expires_at < ?`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired shares: %w", err)
	}
	return res.RowsAffected()
}
