package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	rl := NewRateLimiter(repo, discardLogger(), time.Minute)

	if allowed, _ := rl.Allow(context.Background(), "note:create", "1.2.3.4", 5); !allowed {
		t.Fatal("expected request under limit to be allowed")
	}
}

func TestRateLimiter_FailsOpenOnBackendError(t *testing.T) {
	repo := &fakeRateLimitRepo{countErr: errors.New("db down")}
	rl := NewRateLimiter(repo, discardLogger(), time.Minute)

	if allowed, _ := rl.Allow(context.Background(), "note:create", "1.2.3.4", 5); !allowed {
		t.Fatal("expected fail-open on backend error")
	}
}

func TestRateLimiter_RejectsAtLimit(t *testing.T) {
	now := time.Now()
	repo := &fakeRateLimitRepo{count: 5, oldest: now.Add(-30 * time.Second)}
	rl := NewRateLimiter(repo, discardLogger(), time.Minute)

	allowed, retryAfter := rl.Allow(context.Background(), "note:create", "1.2.3.4", 5)
	if allowed {
		t.Fatal("expected request at limit to be rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("expected retryAfter in (0, window], got %v", retryAfter)
	}
}
