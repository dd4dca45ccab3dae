// Package blobstore stores and retrieves the opaque ciphertext bytes that
// back file shares. Metadata about those bytes lives in the files
// repository; this package only moves bytes in and out of a backend.
package blobstore

import (
	"context"
	"fmt"
	"io"
)

// Store puts, fetches, and deletes ciphertext blobs addressed by a
// server-assigned storage path. A file uploaded in chunked mode is stored
// as one blob per chunk, addressed by Chunk's suffixed path.
type Store interface {
	// Put writes body to path, replacing any existing object.
	Put(ctx context.Context, path string, body io.Reader, size int64) error

	// PutIfAbsent writes body to path using create-or-fail semantics: if an
	// object already exists at path, body is left unread and created is
	// false. Used for chunk uploads, where a retried request must not
	// double-write or double-count an already-stored chunk.
	PutIfAbsent(ctx context.Context, path string, body io.Reader, size int64) (created bool, err error)

	// Get opens path for reading. Callers must close the returned reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes path. Deleting a path that does not exist is not an error.
	Delete(ctx context.Context, path string) error

	// DeletePrefix removes every object whose path begins with prefix, used
	// to clean up all chunks of a chunked file in one call.
	DeletePrefix(ctx context.Context, prefix string) error
}

// ChunkPath builds the storage path for chunk index of a file stored under
// basePath, using the spec's part-NNNNN (5-digit zero-padded) naming.
func ChunkPath(basePath string, index int) string {
	return fmt.Sprintf("%s/part-%05d", basePath, index)
}
