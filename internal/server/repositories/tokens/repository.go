package tokens

import (
	"context"
	"time"

	"github.com/zerodrop/zerodrop/internal/server/models"
)

// Repository persists download tokens minted against a file.
type Repository interface {
	// Create inserts a new token row.
	Create(ctx context.Context, token *models.DownloadToken) error

	// Consume validates a token and, for single-use tokens, marks it used
	// in the same call. Returns common.ErrUnauthorized when the token does
	// not exist, has expired, or (for single-use tokens) was already used.
	Consume(ctx context.Context, token string, now time.Time) (*models.DownloadToken, error)

	// DeleteExpired removes every token row whose expires_at is at or
	// before now, returning the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// DeleteByFileID removes every token minted against fileID, used once
	// a file's metadata row has been finalized or burned.
	DeleteByFileID(ctx context.Context, fileID string) (int64, error)
}
