package notes

import (
	"context"
	"time"

	"github.com/zerodrop/zerodrop/internal/server/models"
)

// Repository persists text notes and implements the atomic
// decrement-or-delete semantics that give the BurnStore its name.
type Repository interface {
	// Create inserts a new note row.
	Create(ctx context.Context, note *models.Note) error

	// Peek returns note metadata without consuming a view. Used to check
	// expiry and passphrase-protection before a client attempts a burn.
	Peek(ctx context.Context, id string) (*models.Note, error)

	// BurnAndFetch atomically decrements views_left and returns the note
	// as it stood before the decrement. When the decrement reaches zero
	// the row is deleted in the same transaction. Returns common.ErrGone
	// when the note does not exist, has expired, or was already burned.
	BurnAndFetch(ctx context.Context, id string, now time.Time) (*models.Note, error)

	// DeleteExpired removes all notes whose expires_at is at or before
	// now, returning the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
