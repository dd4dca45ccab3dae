package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/cryptox"
	"github.com/zerodrop/zerodrop/internal/server/models"
	"github.com/zerodrop/zerodrop/internal/server/repositories/files"
	"github.com/zerodrop/zerodrop/internal/server/repositories/notes"
	"github.com/zerodrop/zerodrop/internal/server/repositories/tokens"
)

// -------- test fakes --------

type fakeNotesRepo struct {
	notes.Repository
	created     []*models.Note
	createErr   error
	peekNote    *models.Note
	peekErr     error
	burnNote    *models.Note
	burnErr     error
}

func (f *fakeNotesRepo) Create(ctx context.Context, n *models.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotesRepo) Peek(ctx context.Context, id string) (*models.Note, error) {
	if f.peekErr != nil {
		return nil, f.peekErr
	}
	return f.peekNote, nil
}

func (f *fakeNotesRepo) BurnAndFetch(ctx context.Context, id string, now time.Time) (*models.Note, error) {
	if f.burnErr != nil {
		return nil, f.burnErr
	}
	return f.burnNote, nil
}

type fakeFilesRepo struct {
	files.Repository
	created        []*models.File
	createErr      error
	peekFile       *models.File
	peekErr        error
	markCount      int
	markErr        error
	finalizeChunks int
	finalizeErr    error
	deleted        []string
	deleteErr      error
	setIVBaseErr   error
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, file)
	return nil
}

func (f *fakeFilesRepo) Peek(ctx context.Context, id string) (*models.File, error) {
	if f.peekErr != nil {
		return nil, f.peekErr
	}
	return f.peekFile, nil
}

func (f *fakeFilesRepo) SetIVBase(ctx context.Context, id string, ivBase []byte) error {
	return f.setIVBaseErr
}

func (f *fakeFilesRepo) MarkChunkUploaded(ctx context.Context, id string) (int, error) {
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.markCount++
	return f.markCount, nil
}

func (f *fakeFilesRepo) Finalize(ctx context.Context, id string) (int, error) {
	if f.finalizeErr != nil {
		return 0, f.finalizeErr
	}
	return f.finalizeChunks, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeTokensRepo struct {
	tokens.Repository
	created     []*models.DownloadToken
	createErr   error
	consumeTok  *models.DownloadToken
	consumeErr  error
}

func (f *fakeTokensRepo) Create(ctx context.Context, t *models.DownloadToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTokensRepo) Consume(ctx context.Context, token string, now time.Time) (*models.DownloadToken, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.consumeTok, nil
}

func (f *fakeTokensRepo) DeleteByFileID(ctx context.Context, fileID string) (int64, error) {
	return 0, nil
}

type fakeBlobStore struct {
	puts    map[string][]byte
	putErr  error
	getErr  error
	delPfx  []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{puts: map[string][]byte{}}
}

func (b *fakeBlobStore) Put(ctx context.Context, path string, body io.Reader, size int64) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, _ := io.ReadAll(body)
	b.puts[path] = data
	return nil
}

func (b *fakeBlobStore) PutIfAbsent(ctx context.Context, path string, body io.Reader, size int64) (bool, error) {
	if _, ok := b.puts[path]; ok {
		return false, nil
	}
	if err := b.Put(ctx, path, body, size); err != nil {
		return false, err
	}
	return true, nil
}

func (b *fakeBlobStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	data, ok := b.puts[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, path string) error {
	delete(b.puts, path)
	return nil
}

func (b *fakeBlobStore) DeletePrefix(ctx context.Context, prefix string) error {
	b.delPfx = append(b.delPfx, prefix)
	return nil
}

// -------- tests --------

func TestCreateNote_ValidationErrors(t *testing.T) {
	s := NewBurnStore(&fakeNotesRepo{}, &fakeFilesRepo{}, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, err := s.CreateNote(context.Background(), NoteInput{ViewsLeft: 1, TTL: time.Hour})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for empty ciphertext, got %v", err)
	}

	_, err = s.CreateNote(context.Background(), NoteInput{
		Ciphertext: []byte("ct"), IV: make([]byte, 12), ViewsLeft: 0, TTL: time.Hour,
	})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for out-of-range views, got %v", err)
	}

	_, err = s.CreateNote(context.Background(), NoteInput{
		Ciphertext: []byte("ct"), IV: make([]byte, 12), ViewsLeft: 1, TTL: 200 * 24 * time.Hour,
	})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for TTL over horizon, got %v", err)
	}
}

func TestCreateNote_Success(t *testing.T) {
	repo := &fakeNotesRepo{}
	s := NewBurnStore(repo, &fakeFilesRepo{}, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	n, err := s.CreateNote(context.Background(), NoteInput{
		Ciphertext: []byte("ct"), IV: make([]byte, 12), ViewsLeft: 3, TTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateNote error: %v", err)
	}
	if n.ID == "" || len(repo.created) != 1 {
		t.Fatalf("expected note to be created: %+v", n)
	}
}

func TestValidateNotePassphrase(t *testing.T) {
	hash := cryptox.DeriveValidationHash([]byte("correct horse"), []byte("0123456789abcdef"), cryptox.MinIterations)

	repo := &fakeNotesRepo{peekNote: &models.Note{
		ID: "n-1", ExpiresAt: time.Now().Add(time.Hour), PassphraseHash: hash,
	}}
	s := NewBurnStore(repo, &fakeFilesRepo{}, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	if err := s.ValidateNotePassphrase(context.Background(), "n-1", hash); err != nil {
		t.Fatalf("expected matching hash to validate, got %v", err)
	}

	err := s.ValidateNotePassphrase(context.Background(), "n-1", "wrong-hash")
	if !errors.Is(err, common.ErrAuthFailure) {
		t.Fatalf("want ErrAuthFailure for mismatched hash, got %v", err)
	}
}

func TestPeekNote_ExpiredIsGone(t *testing.T) {
	repo := &fakeNotesRepo{peekNote: &models.Note{ID: "n-1", ExpiresAt: time.Now().Add(-time.Minute)}}
	s := NewBurnStore(repo, &fakeFilesRepo{}, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, err := s.PeekNote(context.Background(), "n-1")
	if !errors.Is(err, common.ErrGone) {
		t.Fatalf("want ErrGone, got %v", err)
	}
}

func TestCreateFile_ChunkedValidation(t *testing.T) {
	s := NewBurnStore(&fakeNotesRepo{}, &fakeFilesRepo{}, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, err := s.CreateFile(context.Background(), FileInput{
		SizeBytes: 200 << 20, TotalChunks: 2, ChunkBytes: 512, IVBase: make([]byte, 12), TTL: time.Hour,
	})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for chunk size below floor, got %v", err)
	}
}

func TestCreateFile_WholeSuccess(t *testing.T) {
	repo := &fakeFilesRepo{}
	s := NewBurnStore(&fakeNotesRepo{}, repo, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	f, err := s.CreateFile(context.Background(), FileInput{
		FileName: "report.pdf", SizeBytes: 1024, TotalChunks: 1, IVBase: make([]byte, 12), TTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateFile error: %v", err)
	}
	if f.ID == "" || len(repo.created) != 1 {
		t.Fatalf("expected file to be created: %+v", f)
	}
}

func TestPutChunk_CompensatesBlobOnDBFailure(t *testing.T) {
	filesRepo := &fakeFilesRepo{markErr: errors.New("db down")}
	blobs := newFakeBlobStore()
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, &fakeTokensRepo{}, blobs, nil, 60*24*time.Hour)

	f := &models.File{ID: "f-1", StoragePath: "f-1", TotalChunks: 3}
	err := s.PutChunk(context.Background(), f, 1, nil, bytes.NewReader([]byte("chunk")), 5)
	if err == nil {
		t.Fatal("expected error from DB failure")
	}
	if _, ok := blobs.puts["f-1/part-00001"]; ok {
		t.Fatal("expected orphaned chunk to be cleaned up")
	}
}

func TestPutChunk_WritesIVBaseOnFirstChunk(t *testing.T) {
	filesRepo := &fakeFilesRepo{}
	blobs := newFakeBlobStore()
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, &fakeTokensRepo{}, blobs, nil, 60*24*time.Hour)

	f := &models.File{ID: "f-1", StoragePath: "f-1", TotalChunks: 3}
	ivBase := make([]byte, 12)
	if err := s.PutChunk(context.Background(), f, 0, ivBase, bytes.NewReader([]byte("chunk")), 5); err != nil {
		t.Fatalf("PutChunk error: %v", err)
	}
	if _, ok := blobs.puts["f-1/part-00000"]; !ok {
		t.Fatal("expected chunk to be stored")
	}
}

func TestPutChunk_RejectsBadIVBaseOnFirstChunk(t *testing.T) {
	filesRepo := &fakeFilesRepo{}
	blobs := newFakeBlobStore()
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, &fakeTokensRepo{}, blobs, nil, 60*24*time.Hour)

	f := &models.File{ID: "f-1", StoragePath: "f-1", TotalChunks: 3}
	err := s.PutChunk(context.Background(), f, 0, nil, bytes.NewReader([]byte("chunk")), 5)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestPutChunk_DuplicateRetryDoesNotDoubleCount(t *testing.T) {
	filesRepo := &fakeFilesRepo{}
	blobs := newFakeBlobStore()
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, &fakeTokensRepo{}, blobs, nil, 60*24*time.Hour)

	f := &models.File{ID: "f-1", StoragePath: "f-1", TotalChunks: 3}
	ivBase := make([]byte, 12)

	if err := s.PutChunk(context.Background(), f, 0, ivBase, bytes.NewReader([]byte("chunk-a")), 7); err != nil {
		t.Fatalf("first PutChunk error: %v", err)
	}
	if filesRepo.markCount != 1 {
		t.Fatalf("want uploaded_chunks=1 after first upload, got %d", filesRepo.markCount)
	}

	// The client's retry policy re-POSTs the same index after a lost ack;
	// the object already exists, so this must be a no-op.
	if err := s.PutChunk(context.Background(), f, 0, ivBase, bytes.NewReader([]byte("chunk-a")), 7); err != nil {
		t.Fatalf("retried PutChunk error: %v", err)
	}
	if filesRepo.markCount != 1 {
		t.Fatalf("want uploaded_chunks to stay at 1 after a duplicate retry, got %d", filesRepo.markCount)
	}
	if string(blobs.puts["f-1/part-00000"]) != "chunk-a" {
		t.Fatalf("expected original chunk bytes to survive the retry, got %q", blobs.puts["f-1/part-00000"])
	}
}

func TestFinalizeFile_AlreadyGoneIsIdempotent(t *testing.T) {
	filesRepo := &fakeFilesRepo{finalizeErr: common.ErrValidation, peekErr: common.ErrGone}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1", IsMultiUse: true}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, err := s.FinalizeFile(context.Background(), "f-1", "tok-1")
	if !errors.Is(err, common.ErrAlreadyFinalized) {
		t.Fatalf("want ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalizeFile_Success(t *testing.T) {
	filesRepo := &fakeFilesRepo{finalizeChunks: 5}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1", IsMultiUse: true}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, newFakeBlobStore(), nil, 60*24*time.Hour)

	n, err := s.FinalizeFile(context.Background(), "f-1", "tok-1")
	if err != nil {
		t.Fatalf("FinalizeFile error: %v", err)
	}
	if n != 5 {
		t.Fatalf("want 5 chunks, got %d", n)
	}
}

func TestFinalizeFile_DeletesChunkBlobs(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.puts["f-1/part-00000"] = []byte("a")
	blobs.puts["f-1/part-00001"] = []byte("b")
	filesRepo := &fakeFilesRepo{finalizeChunks: 2}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1", IsMultiUse: true}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, blobs, nil, 60*24*time.Hour)

	if _, err := s.FinalizeFile(context.Background(), "f-1", "tok-1"); err != nil {
		t.Fatalf("FinalizeFile error: %v", err)
	}
	if len(blobs.delPfx) != 1 || blobs.delPfx[0] != "f-1" {
		t.Fatalf("expected DeletePrefix(f-1), got %v", blobs.delPfx)
	}
}

func TestOpenDownload_WholeFile(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.puts["f-1"] = []byte("ciphertext")

	filesRepo := &fakeFilesRepo{peekFile: &models.File{
		ID: "f-1", StoragePath: "f-1", TotalChunks: 1, ExpiresAt: time.Now().Add(time.Hour),
	}}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1"}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, blobs, nil, 60*24*time.Hour)

	f, rc, err := s.OpenDownload(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("OpenDownload error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "ciphertext" || f.ID != "f-1" {
		t.Fatalf("unexpected download: file=%+v data=%q", f, data)
	}
	if _, ok := blobs.puts["f-1"]; ok {
		t.Fatal("expected blob to be deleted after burn")
	}
	if len(filesRepo.deleted) != 1 || filesRepo.deleted[0] != "f-1" {
		t.Fatalf("expected metadata row to be deleted, got %v", filesRepo.deleted)
	}
}

func TestOpenDownload_UnauthorizedToken(t *testing.T) {
	tokensRepo := &fakeTokensRepo{consumeErr: common.ErrUnauthorized}
	s := NewBurnStore(&fakeNotesRepo{}, &fakeFilesRepo{}, tokensRepo, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, _, err := s.OpenDownload(context.Background(), "bad-token")
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestOpenDownloadChunk_Success(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.puts["f-1/part-00000"] = []byte("chunk-0")
	blobs.puts["f-1/part-00001"] = []byte("chunk-1")

	filesRepo := &fakeFilesRepo{peekFile: &models.File{
		ID: "f-1", StoragePath: "f-1", TotalChunks: 2, ExpiresAt: time.Now().Add(time.Hour),
	}}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1", IsMultiUse: true}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, blobs, nil, 60*24*time.Hour)

	f, rc, err := s.OpenDownloadChunk(context.Background(), "tok-1", 1)
	if err != nil {
		t.Fatalf("OpenDownloadChunk error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "chunk-1" || f.ID != "f-1" {
		t.Fatalf("unexpected chunk download: file=%+v data=%q", f, data)
	}

	// The download token is multi-use, so the chunked file's metadata row
	// and blobs are untouched until a later FinalizeFile call.
	if len(filesRepo.deleted) != 0 {
		t.Fatalf("expected metadata row to survive a chunk download, got %v", filesRepo.deleted)
	}
}

func TestOpenDownloadChunk_RejectsWholeFile(t *testing.T) {
	filesRepo := &fakeFilesRepo{peekFile: &models.File{
		ID: "f-1", StoragePath: "f-1", TotalChunks: 1, ExpiresAt: time.Now().Add(time.Hour),
	}}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1", IsMultiUse: true}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, _, err := s.OpenDownloadChunk(context.Background(), "tok-1", 0)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for a whole-file token, got %v", err)
	}
}

func TestOpenDownloadChunk_RejectsOutOfRangeIndex(t *testing.T) {
	filesRepo := &fakeFilesRepo{peekFile: &models.File{
		ID: "f-1", StoragePath: "f-1", TotalChunks: 2, ExpiresAt: time.Now().Add(time.Hour),
	}}
	tokensRepo := &fakeTokensRepo{consumeTok: &models.DownloadToken{Token: "tok-1", FileID: "f-1", IsMultiUse: true}}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, tokensRepo, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, _, err := s.OpenDownloadChunk(context.Background(), "tok-1", 5)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for an out-of-range index, got %v", err)
	}
}

func TestMintDownloadToken_FileGoneIsGone(t *testing.T) {
	filesRepo := &fakeFilesRepo{peekErr: common.ErrGone}
	s := NewBurnStore(&fakeNotesRepo{}, filesRepo, &fakeTokensRepo{}, newFakeBlobStore(), nil, 60*24*time.Hour)

	_, err := s.MintDownloadToken(context.Background(), "ghost", false)
	if !errors.Is(err, common.ErrGone) {
		t.Fatalf("want ErrGone, got %v", err)
	}
}
