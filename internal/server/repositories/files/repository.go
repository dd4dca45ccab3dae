package files

import (
	"context"
	"time"

	"github.com/zerodrop/zerodrop/internal/server/models"
)

// Repository persists file metadata. The encrypted bytes themselves live in
// a blobstore; this package only tracks the record that describes them.
type Repository interface {
	// Create inserts a new file row. For whole-file uploads TotalChunks is 1
	// and the row is created already finalized; for chunked uploads the row
	// starts with UploadedChunks=0 and Finalized=false.
	Create(ctx context.Context, file *models.File) error

	// Peek returns file metadata by id. Returns common.ErrGone when the
	// file does not exist or has expired.
	Peek(ctx context.Context, id string) (*models.File, error)

	// SetIVBase writes ivBase into id's metadata row. Called when chunk 0
	// of a chunked upload arrives; idempotent under retry of chunk 0.
	SetIVBase(ctx context.Context, id string, ivBase []byte) error

	// MarkChunkUploaded records that one more chunk has arrived for id.
	MarkChunkUploaded(ctx context.Context, id string) (uploadedChunks int, err error)

	// Finalize marks a chunked upload complete: it deletes the metadata
	// row and returns the declared chunk count so the caller can remove
	// the matching blobs. Returns common.ErrValidation if fewer chunks
	// have been uploaded than TotalChunks declares, or common.ErrGone if
	// the row no longer exists.
	Finalize(ctx context.Context, id string) (totalChunks int, err error)

	// Delete removes the metadata row for id, used after a whole-file
	// download has burned its single-use token and the blob has been
	// removed.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes and returns every file row whose expires_at is
	// at or before now, so the caller can also delete the matching blobs.
	DeleteExpired(ctx context.Context, now time.Time) ([]*models.File, error)
}
