// Package services implements the BurnStore's domain logic: creating and
// burning notes, uploading and downloading files (whole or chunked), and
// expiring both on schedule. Every method here treats its inputs as
// opaque ciphertext — decryption keys never reach the server.
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zerodrop/zerodrop/internal/codec"
	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/cryptox"
	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/blobstore"
	"github.com/zerodrop/zerodrop/internal/server/models"
	"github.com/zerodrop/zerodrop/internal/server/repositories/files"
	"github.com/zerodrop/zerodrop/internal/server/repositories/notes"
	"github.com/zerodrop/zerodrop/internal/server/repositories/tokens"
)

// NoteInput carries the fields a client supplies when creating a note. All
// byte fields are ciphertext or salts; the server never sees plaintext.
type NoteInput struct {
	Ciphertext []byte
	IV         []byte
	ViewsLeft  int
	TTL        time.Duration

	EncryptionSalt []byte
	ValidationSalt []byte
	KDFIterations  int
	PassphraseHash string
}

// FileInput carries the fields a client supplies when creating a file
// record, before any bytes have been uploaded.
type FileInput struct {
	FileName    string
	SizeBytes   int64
	ChunkBytes  int
	TotalChunks int
	IVBase      []byte
	TTL         time.Duration

	EncryptedFilename []byte
	FilenameIV        []byte

	EncryptionSalt []byte
	ValidationSalt []byte
	KDFIterations  int
	PassphraseHash string
}

// BurnStore orchestrates the notes, files, tokens repositories and the
// blobstore behind the single-use-secret API.
type BurnStore struct {
	notes  notes.Repository
	files  files.Repository
	tokens tokens.Repository
	blobs  blobstore.Store
	logger logging.Logger

	maxExpiryHorizon time.Duration
}

// NewBurnStore constructs a BurnStore bound to the given repositories and blobstore.
func NewBurnStore(
	notesRepo notes.Repository,
	filesRepo files.Repository,
	tokensRepo tokens.Repository,
	blobs blobstore.Store,
	logger logging.Logger,
	maxExpiryHorizon time.Duration,
) *BurnStore {
	return &BurnStore{
		notes:            notesRepo,
		files:            filesRepo,
		tokens:           tokensRepo,
		blobs:            blobs,
		logger:           logger,
		maxExpiryHorizon: maxExpiryHorizon,
	}
}

// CreateNote validates in and persists a new note, returning its id.
func (s *BurnStore) CreateNote(ctx context.Context, in NoteInput) (*models.Note, error) {
	if err := s.validateNoteInput(in); err != nil {
		return nil, err
	}

	now := time.Now()
	n := &models.Note{
		ID:             uuid.New().String(),
		Ciphertext:     in.Ciphertext,
		IV:             in.IV,
		CreatedAt:      now,
		ExpiresAt:      now.Add(in.TTL),
		ViewsLeft:      in.ViewsLeft,
		EncryptionSalt: in.EncryptionSalt,
		ValidationSalt: in.ValidationSalt,
		KDFIterations:  in.KDFIterations,
		PassphraseHash: in.PassphraseHash,
	}

	if err := s.notes.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return n, nil
}

func (s *BurnStore) validateNoteInput(in NoteInput) error {
	if len(in.Ciphertext) == 0 || len(in.IV) != codec.IVLength {
		return common.ErrValidation
	}
	if in.ViewsLeft < common.MinViews || in.ViewsLeft > common.MaxViews {
		return common.ErrValidation
	}
	if in.TTL <= 0 || in.TTL > s.maxExpiryHorizon {
		return common.ErrValidation
	}
	if (in.PassphraseHash == "") != (len(in.EncryptionSalt) == 0 && len(in.ValidationSalt) == 0) {
		return common.ErrValidation
	}
	return nil
}

// PeekNote returns note metadata (to let a client detect passphrase
// protection before attempting a burn) without consuming a view.
func (s *BurnStore) PeekNote(ctx context.Context, id string) (*models.Note, error) {
	n, err := s.notes.Peek(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.ExpiresAt.After(time.Now()) {
		return nil, common.ErrGone
	}
	return n, nil
}

// ValidateNotePassphrase checks candidateHash against the stored validation
// hash for note id, without consuming a view. Returns common.ErrAuthFailure
// if the hashes don't match.
func (s *BurnStore) ValidateNotePassphrase(ctx context.Context, id, candidateHash string) error {
	n, err := s.PeekNote(ctx, id)
	if err != nil {
		return err
	}
	if !n.IsPassphraseProtected() {
		return common.ErrValidation
	}
	if !cryptox.ValidationHashEquals(candidateHash, n.PassphraseHash) {
		return common.ErrAuthFailure
	}
	return nil
}

// BurnNote atomically consumes one view of note id and returns it.
func (s *BurnStore) BurnNote(ctx context.Context, id string) (*models.Note, error) {
	return s.notes.BurnAndFetch(ctx, id, time.Now())
}

// CreateFile validates in and persists a new file record. For whole-file
// uploads (TotalChunks == 1) the caller must immediately call PutWholeBlob.
func (s *BurnStore) CreateFile(ctx context.Context, in FileInput) (*models.File, error) {
	if err := s.validateFileInput(in); err != nil {
		return nil, err
	}

	now := time.Now()
	id := uuid.New().String()
	f := &models.File{
		ID:                id,
		CreatedAt:         now,
		ExpiresAt:         now.Add(in.TTL),
		FileName:          in.FileName,
		SizeBytes:         in.SizeBytes,
		ChunkBytes:        in.ChunkBytes,
		TotalChunks:       in.TotalChunks,
		IVBase:            in.IVBase,
		StoragePath:       id,
		EncryptedFilename: in.EncryptedFilename,
		FilenameIV:        in.FilenameIV,
		EncryptionSalt:    in.EncryptionSalt,
		ValidationSalt:    in.ValidationSalt,
		KDFIterations:     in.KDFIterations,
		PassphraseHash:    in.PassphraseHash,
	}

	if err := s.files.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return f, nil
}

func (s *BurnStore) validateFileInput(in FileInput) error {
	if in.SizeBytes <= 0 {
		return common.ErrValidation
	}
	if in.TotalChunks < 1 {
		return common.ErrValidation
	}
	if in.TotalChunks > 1 {
		if in.ChunkBytes < common.MinChunkBytes || in.ChunkBytes > common.MaxChunkBytes {
			return common.ErrValidation
		}
	}
	// Whole-file IV is known immediately (it is the file's only GCM IV).
	// Chunked uploads generate iv_base client-side too, but the protocol
	// defers writing it to the metadata row until chunk 0 arrives, per
	// spec.md §5's ordering guarantee; init_chunked_upload may leave it
	// unset.
	if in.TotalChunks == 1 && len(in.IVBase) != codec.IVLength {
		return common.ErrValidation
	}
	if in.TotalChunks > 1 && len(in.IVBase) != 0 && len(in.IVBase) != codec.IVLength {
		return common.ErrValidation
	}
	if in.TTL <= 0 || in.TTL > s.maxExpiryHorizon {
		return common.ErrValidation
	}
	if (in.PassphraseHash == "") != (len(in.EncryptionSalt) == 0 && len(in.ValidationSalt) == 0) {
		return common.ErrValidation
	}
	// A file is either named in the clear or has its name hidden behind
	// encrypted_filename/filename_iv (spec.md §4.2); never both, and a
	// hidden name always carries both halves together.
	hidden := len(in.EncryptedFilename) > 0 || len(in.FilenameIV) > 0
	if hidden {
		if in.FileName != "" {
			return common.ErrValidation
		}
		if len(in.EncryptedFilename) == 0 || len(in.FilenameIV) != codec.IVLength {
			return common.ErrValidation
		}
	}
	return nil
}

// PutWholeBlob stores the complete ciphertext for a whole-file (non-chunked)
// upload.
func (s *BurnStore) PutWholeBlob(ctx context.Context, f *models.File, body io.Reader, size int64) error {
	if f.IsChunked() {
		return common.ErrValidation
	}
	if err := s.blobs.Put(ctx, f.StoragePath, body, size); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return nil
}

// PutChunk stores one chunk's ciphertext and advances the file's upload
// progress. index is zero-based. ivBase must be supplied (and exactly
// codec.IVLength bytes) when index is 0, since the first chunk request is
// what commits iv_base into the metadata row; it is ignored for any other
// index.
//
// Idempotent: per spec.md §4.4/§5, a client retrying a chunk whose ack was
// lost (timeout, 5xx) re-POSTs the same index. If that chunk's object
// already exists, this returns success without writing it again or
// incrementing uploaded_chunks a second time — otherwise the count could
// reach total_chunks while a genuinely distinct index is still missing.
func (s *BurnStore) PutChunk(ctx context.Context, f *models.File, index int, ivBase []byte, body io.Reader, size int64) error {
	if !f.IsChunked() {
		return common.ErrValidation
	}
	if index < 0 || index >= f.TotalChunks {
		return common.ErrValidation
	}
	if index == 0 {
		if len(ivBase) != codec.IVLength {
			return common.ErrValidation
		}
		if err := s.files.SetIVBase(ctx, f.ID, ivBase); err != nil {
			return err
		}
	}
	path := blobstore.ChunkPath(f.StoragePath, index)
	created, err := s.blobs.PutIfAbsent(ctx, path, body, size)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	if !created {
		return nil
	}
	if _, err := s.files.MarkChunkUploaded(ctx, f.ID); err != nil {
		// Compensate: the chunk landed in the blobstore but the DB did not
		// record it. Remove the orphaned chunk rather than leave the
		// upload stuck at a count the client cannot reconcile.
		_ = s.blobs.Delete(ctx, path)
		return err
	}
	return nil
}

// FinalizeFile completes a chunked transfer: it validates the multi-use
// download token, deletes the file's metadata row, its chunk blobs, and
// every token minted against it, and returns the chunk count. Re-invoking finalize after the file is already
// gone — whether from a prior finalize or the expiry sweeper racing ahead
// of it — is reported as common.ErrAlreadyFinalized rather than an error,
// per spec.md §9's resolution of the finalize-vs-expiry race.
func (s *BurnStore) FinalizeFile(ctx context.Context, fileID, token string) (chunksDeleted int, err error) {
	t, err := s.tokens.Consume(ctx, token, time.Now())
	if err != nil || t.FileID != fileID {
		if _, peekErr := s.files.Peek(ctx, fileID); peekErr != nil {
			return 0, common.ErrAlreadyFinalized
		}
		return 0, common.ErrUnauthorized
	}

	totalChunks, err := s.files.Finalize(ctx, fileID)
	if err != nil {
		if _, peekErr := s.files.Peek(ctx, fileID); peekErr != nil {
			return 0, common.ErrAlreadyFinalized
		}
		return 0, err
	}

	if err := s.blobs.DeletePrefix(ctx, fileID); err != nil {
		s.logger.Warn(ctx, "finalize: chunk cleanup failed, orphans left for sweeper", "file_id", fileID, "error", err)
	}
	if _, derr := s.tokens.DeleteByFileID(ctx, fileID); derr != nil {
		s.logger.Warn(ctx, "finalize: token cleanup failed, orphans left for sweeper", "file_id", fileID, "error", derr)
	}
	return totalChunks, nil
}

// PeekFile returns file metadata without minting a token.
func (s *BurnStore) PeekFile(ctx context.Context, id string) (*models.File, error) {
	f, err := s.files.Peek(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.ExpiresAt.After(time.Now()) {
		return nil, common.ErrGone
	}
	return f, nil
}

// ValidateFilePassphrase checks candidateHash against the stored validation
// hash for file id. Returns common.ErrAuthFailure if the hashes don't match.
func (s *BurnStore) ValidateFilePassphrase(ctx context.Context, id, candidateHash string) error {
	f, err := s.PeekFile(ctx, id)
	if err != nil {
		return err
	}
	if !f.IsPassphraseProtected() {
		return common.ErrValidation
	}
	if !cryptox.ValidationHashEquals(candidateHash, f.PassphraseHash) {
		return common.ErrAuthFailure
	}
	return nil
}

// MintDownloadToken issues a new token for fileID. Single-use tokens live
// common.SingleUseTokenTTL; multi-use tokens live common.MultiUseTokenTTL.
func (s *BurnStore) MintDownloadToken(ctx context.Context, fileID string, multiUse bool) (*models.DownloadToken, error) {
	if _, err := s.PeekFile(ctx, fileID); err != nil {
		return nil, err
	}

	ttl := common.SingleUseTokenTTL
	if multiUse {
		ttl = common.MultiUseTokenTTL
	}

	now := time.Now()
	t := &models.DownloadToken{
		Token:      uuid.New().String(),
		FileID:     fileID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		IsMultiUse: multiUse,
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return t, nil
}

// OpenDownload validates a single-use token, burns it, and returns the file
// metadata plus a reader over its ciphertext bytes. Per spec.md §4.4's
// download_whole, this atomically consumes the token, then removes the blob,
// then deletes the metadata row — both deletions are best-effort once the
// bytes have been read out, since the recipient already has the data and
// any orphan left by a partial failure is reclaimed by the sweeper. For
// chunked files, use OpenDownloadChunk and FinalizeFile instead.
func (s *BurnStore) OpenDownload(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	f, err := s.consumeTokenAndPeek(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if f.IsChunked() {
		return nil, nil, common.ErrValidation
	}

	rc, err := s.blobs.Get(ctx, f.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	if err := s.blobs.Delete(ctx, f.StoragePath); err != nil {
		s.logger.Warn(ctx, "download_whole: blob delete failed, orphan left for sweeper", "file_id", f.ID, "error", err)
	}
	if err := s.files.Delete(ctx, f.ID); err != nil {
		s.logger.Warn(ctx, "download_whole: metadata delete failed, orphan left for sweeper", "file_id", f.ID, "error", err)
	}

	return f, io.NopCloser(bytes.NewReader(data)), nil
}

// OpenDownloadChunk validates token and returns a reader over chunk index
// of a chunked file.
func (s *BurnStore) OpenDownloadChunk(ctx context.Context, token string, index int) (*models.File, io.ReadCloser, error) {
	f, err := s.consumeTokenAndPeek(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !f.IsChunked() {
		return nil, nil, common.ErrValidation
	}
	if index < 0 || index >= f.TotalChunks {
		return nil, nil, common.ErrValidation
	}
	rc, err := s.blobs.Get(ctx, blobstore.ChunkPath(f.StoragePath, index))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return f, rc, nil
}

func (s *BurnStore) consumeTokenAndPeek(ctx context.Context, token string) (*models.File, error) {
	t, err := s.tokens.Consume(ctx, token, time.Now())
	if err != nil {
		return nil, err
	}
	f, err := s.files.Peek(ctx, t.FileID)
	if err != nil {
		return nil, common.ErrGone
	}
	if !f.ExpiresAt.After(time.Now()) {
		return nil, common.ErrGone
	}
	return f, nil
}
