package history

import (
	"context"
	"time"
)

// Repository describes CRUD and query operations over locally recorded
// shares. Implementations are typically backed by a local SQLite database.
type Repository interface {
	// Create inserts a new share record.
	Create(ctx context.Context, s *Share) error

	// List returns all non-deleted shares, most recent first.
	List(ctx context.Context) ([]Share, error)

	// GetByID returns a single non-deleted share by its identifier.
	GetByID(ctx context.Context, id string) (*Share, error)

	// DeleteByID marks a share as deleted (soft delete). It expects
	// exactly one row to be affected.
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired soft-deletes every share whose ExpiresAt is in the
	// past, and returns the number of rows affected.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
