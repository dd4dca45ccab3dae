// Package models defines the server-side records persisted by the
// BurnStore: notes, files, download tokens, and rate-limit entries, per
// spec.md §3.
package models

import "time"

// Note is one text secret: the data model from spec.md §3.
type Note struct {
	ID         string
	Ciphertext []byte
	IV         []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ViewsLeft  int

	// Passphrase fields: either all nil/zero (link-with-key mode) or all
	// populated (passphrase mode). Invariant enforced at creation time.
	EncryptionSalt []byte
	ValidationSalt []byte
	KDFIterations  int
	PassphraseHash string
}

// IsPassphraseProtected reports whether n is in passphrase mode.
func (n *Note) IsPassphraseProtected() bool {
	return n.PassphraseHash != ""
}

// File is one binary secret: the data model from spec.md §3.
type File struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	FileName    string
	SizeBytes   int64
	ChunkBytes  int
	TotalChunks int
	IVBase      []byte
	StoragePath string

	EncryptedFilename []byte
	FilenameIV        []byte

	EncryptionSalt []byte
	ValidationSalt []byte
	KDFIterations  int
	PassphraseHash string
}

// IsPassphraseProtected reports whether f is in passphrase mode.
func (f *File) IsPassphraseProtected() bool {
	return f.PassphraseHash != ""
}

// IsChunked reports whether f uses chunked mode (TotalChunks > 1).
func (f *File) IsChunked() bool {
	return f.TotalChunks > 1
}

// HasHiddenFilename reports whether the sender requested filename hiding.
func (f *File) HasHiddenFilename() bool {
	return len(f.EncryptedFilename) > 0
}

// DownloadToken is a short-lived, single- or multi-use credential required
// to retrieve a file's encrypted bytes, per spec.md §3.
type DownloadToken struct {
	Token      string
	FileID     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Used       bool
	IsMultiUse bool
}

// RateLimitEntry is one request timestamp recorded against a rate-limit
// key (endpoint class + client IP), per spec.md §4.5/§6.1.
type RateLimitEntry struct {
	Key       string
	IPAddress string
	Timestamp time.Time
}
