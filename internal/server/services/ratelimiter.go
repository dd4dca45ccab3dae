package services

import (
	"context"
	"time"

	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/repositories/ratelimit"
)

// RateLimiter enforces a per-(endpoint-class, IP) sliding window, per
// spec.md §4.5/§6.1. Backend failures fail open: a request is allowed
// through rather than the service going unavailable because the
// rate-limit store is unreachable.
type RateLimiter struct {
	repo   ratelimit.Repository
	logger logging.Logger
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter with the given sliding window length.
func NewRateLimiter(repo ratelimit.Repository, logger logging.Logger, window time.Duration) *RateLimiter {
	return &RateLimiter{repo: repo, logger: logger, window: window}
}

// Allow records this request against key/ip and reports whether it falls
// within limit requests over the configured window. On a backend error it
// logs and allows the request through. When the request is rejected, the
// returned duration is how long until the oldest in-window entry ages out
// (per spec.md §4.5's Retry-After semantics), for the caller to report back
// to the client; it is meaningless when allowed is true.
func (r *RateLimiter) Allow(ctx context.Context, key, ip string, limit int) (allowed bool, retryAfter time.Duration) {
	now := time.Now()
	since := now.Add(-r.window)

	count, err := r.repo.CountSince(ctx, key, ip, since)
	if err != nil {
		r.logger.Warn(ctx, "rate limiter backend error, failing open", "key", key, "ip", ip, "error", err)
		return true, 0
	}
	if count >= limit {
		oldest, err := r.repo.OldestSince(ctx, key, ip, since)
		if err != nil || oldest.IsZero() {
			if err != nil {
				r.logger.Warn(ctx, "rate limiter oldest lookup failed", "key", key, "ip", ip, "error", err)
			}
			return false, r.window
		}
		if d := oldest.Add(r.window).Sub(now); d > 0 {
			return false, d
		}
		return false, 0
	}

	if err := r.repo.Record(ctx, key, ip, now); err != nil {
		r.logger.Warn(ctx, "rate limiter record failed", "key", key, "ip", ip, "error", err)
	}
	return true, 0
}
