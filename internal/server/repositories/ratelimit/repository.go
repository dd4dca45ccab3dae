package ratelimit

import (
	"context"
	"time"
)

// Repository backs the sliding-window rate limiter with a simple
// timestamp log per (key, ip) pair.
type Repository interface {
	// Record inserts one timestamp entry for key/ip.
	Record(ctx context.Context, key, ip string, at time.Time) error

	// CountSince returns the number of entries recorded for key/ip at or
	// after since.
	CountSince(ctx context.Context, key, ip string, since time.Time) (int, error)

	// OldestSince returns the timestamp of the oldest entry for key/ip at
	// or after since, so a rejected request's Retry-After can reflect when
	// that entry ages out of the window rather than the full window
	// length. A zero time with a nil error means no matching entry exists.
	OldestSince(ctx context.Context, key, ip string, since time.Time) (time.Time, error)

	// DeleteOlderThan removes entries recorded before cutoff, returning the
	// number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
