package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/models"
	"github.com/zerodrop/zerodrop/internal/server/repositories/ratelimit"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeRateLimitRepo struct {
	ratelimit.Repository
	deleted   int64
	deleteErr error
	count     int
	countErr  error
	recordErr error
	oldest    time.Time
	oldestErr error
}

func (f *fakeRateLimitRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.deleted, nil
}

func (f *fakeRateLimitRepo) CountSince(ctx context.Context, key, ip string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeRateLimitRepo) Record(ctx context.Context, key, ip string, at time.Time) error {
	return f.recordErr
}

func (f *fakeRateLimitRepo) OldestSince(ctx context.Context, key, ip string, since time.Time) (time.Time, error) {
	return f.oldest, f.oldestErr
}

func (f *fakeNotesRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 2, nil
}

func (f *fakeFilesRepo) DeleteExpired(ctx context.Context, now time.Time) ([]*models.File, error) {
	return []*models.File{
		{ID: "f-1", StoragePath: "f-1", TotalChunks: 1},
		{ID: "f-2", StoragePath: "f-2", TotalChunks: 3},
	}, nil
}

func (f *fakeTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 5, nil
}

func TestSweepOnce_DeletesBlobsForExpiredFiles(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.puts["f-1"] = []byte("x")

	s := NewSweeper(&fakeNotesRepo{}, &fakeFilesRepo{}, &fakeTokensRepo{}, &fakeRateLimitRepo{},
		blobs, discardLogger(), time.Minute)

	if err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce error: %v", err)
	}
	if _, ok := blobs.puts["f-1"]; ok {
		t.Fatal("expected whole-file blob to be deleted")
	}
	if len(blobs.delPfx) != 1 || blobs.delPfx[0] != "f-2" {
		t.Fatalf("expected chunked file prefix deletion, got %v", blobs.delPfx)
	}
}

func TestSweepOnce_AggregatesErrors(t *testing.T) {
	s := NewSweeper(&fakeNotesRepo{}, &fakeFilesRepo{}, &fakeTokensRepo{},
		&fakeRateLimitRepo{deleteErr: errors.New("boom")},
		newFakeBlobStore(), discardLogger(), time.Minute)

	err := s.SweepOnce(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
}
