package cli

import (
	"context"
	"fmt"
	"log"
)

// deleteHistory removes a share from local history only; the server copy
// is unaffected (it is burned by its own view count or expiry, not by
// this command).
func (a *App) deleteHistory(ctx context.Context, id string) {
	if err := a.history.DeleteByID(ctx, id); err != nil {
		log.Printf("error deleting %s from history: %v", id, err)
		return
	}
	fmt.Printf("Removed %s from local history.\n", id)
}
