package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zerodrop/zerodrop/internal/client/history"
	"github.com/zerodrop/zerodrop/internal/codec"
)

// recordShare writes a newly created share into local history so its id
// and content key can be re-printed later with `list`.
func (a *App) recordShare(ctx context.Context, kind history.Kind, id, label string, key []byte, ttl time.Duration) {
	now := time.Now()
	s := &history.Share{
		ID:         id,
		Kind:       kind,
		Label:      label,
		ContentKey: codec.Encode(key),
		ServerURL:  a.config.ServerBaseURL,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := a.history.Create(ctx, s); err != nil {
		log.Printf("warning: failed to record share in local history: %v", err)
	}
}

func (a *App) listHistory(ctx context.Context) {
	shares, err := a.history.List(ctx)
	if err != nil {
		log.Printf("error listing history: %v", err)
		return
	}
	if len(shares) == 0 {
		fmt.Println("No recorded shares.")
		return
	}
	for _, s := range shares {
		fmt.Printf("%s  %-5s  %-30s  key %s  expires %s\n", s.ID, s.Kind, s.Label, s.ContentKey, s.ExpiresAt.Format(time.RFC3339))
	}
}
