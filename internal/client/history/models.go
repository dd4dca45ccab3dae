// Package history keeps a local, unencrypted record of secrets this CLI
// has created, so a user can re-print a share link or a content key after
// the terminal that first showed it has scrolled away. It is purely a
// local convenience: the server never sees this data, and nothing here is
// synced anywhere.
package history

import "time"

// Kind classifies a recorded share.
type Kind string

const (
	KindNote Kind = "note"
	KindFile Kind = "file"
)

// Share is one row of local history: enough to reconstruct a fetch URL
// and decrypt the result without contacting the server's metadata
// endpoints again.
type Share struct {
	ID         string
	Kind       Kind
	Label      string
	ContentKey string // base64url-encoded; never leaves the local machine
	ServerURL  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Deleted    bool
}
