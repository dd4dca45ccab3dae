package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/blobstore"
	"github.com/zerodrop/zerodrop/internal/server/repositories/files"
	"github.com/zerodrop/zerodrop/internal/server/repositories/notes"
	"github.com/zerodrop/zerodrop/internal/server/repositories/ratelimit"
	"github.com/zerodrop/zerodrop/internal/server/repositories/tokens"
	"go.uber.org/multierr"
)

// Sweeper periodically removes expired notes, files, tokens, and
// rate-limit entries, deleting the matching blobs for any expired file.
type Sweeper struct {
	notes     notes.Repository
	files     files.Repository
	tokens    tokens.Repository
	rateLimit ratelimit.Repository
	blobs     blobstore.Store
	logger    logging.Logger
	interval  time.Duration
}

// NewSweeper constructs a Sweeper that runs every interval once started.
func NewSweeper(
	notesRepo notes.Repository,
	filesRepo files.Repository,
	tokensRepo tokens.Repository,
	rateLimitRepo ratelimit.Repository,
	blobs blobstore.Store,
	logger logging.Logger,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		notes:     notesRepo,
		files:     filesRepo,
		tokens:    tokensRepo,
		rateLimit: rateLimitRepo,
		blobs:     blobs,
		logger:    logger,
		interval:  interval,
	}
}

// Run blocks, sweeping every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce removes every expired note, file (plus its blobs), token, and
// stale rate-limit entry in one pass, aggregating any errors encountered.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := time.Now()
	var errs error

	notesDeleted, err := s.notes.DeleteExpired(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sweep notes: %w", err))
	}

	expiredFiles, err := s.files.DeleteExpired(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sweep files: %w", err))
	}
	for _, f := range expiredFiles {
		if f.IsChunked() {
			if err := s.blobs.DeletePrefix(ctx, f.StoragePath); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("sweep blob prefix %s: %w", f.StoragePath, err))
			}
			continue
		}
		if err := s.blobs.Delete(ctx, f.StoragePath); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep blob %s: %w", f.StoragePath, err))
		}
	}

	tokensDeleted, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sweep tokens: %w", err))
	}

	rateLimitCutoff := now.Add(-common.RateLimitEntryRetention)
	rlDeleted, err := s.rateLimit.DeleteOlderThan(ctx, rateLimitCutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sweep rate limits: %w", err))
	}

	s.logger.Info(ctx, "sweep complete",
		"notes_deleted", notesDeleted,
		"files_deleted", len(expiredFiles),
		"tokens_deleted", tokensDeleted,
		"rate_limit_rows_deleted", rlDeleted,
	)

	return errs
}
