// Package common also carries the small set of cross-cutting constants that
// every server/client layer needs to agree on.
package common

import "time"

const (
	// MinViews and MaxViews bound the views_left field on note creation,
	// per spec.md §3/§4.4.
	MinViews = 1
	MaxViews = 100

	// MinChunkBytes and MaxChunkBytes bound a file's declared chunk_bytes.
	MinChunkBytes = 1 << 20 // 1 MiB
	MaxChunkBytes = 4 << 20 // 4 MiB

	// DefaultMaxExpiryHorizon is the default ceiling on expires_at - created_at.
	DefaultMaxExpiryHorizon = 60 * 24 * time.Hour

	// SingleUseTokenTTL and MultiUseTokenTTL are the download-token
	// lifetimes from spec.md §3.
	SingleUseTokenTTL = 5 * time.Minute
	MultiUseTokenTTL  = 10 * time.Minute

	// RateLimitWindow is the sliding-window length used by every endpoint
	// in spec.md §6.1's rate-limit table.
	RateLimitWindow = time.Minute

	// RateLimitEntryRetention is how long a rate-limit timestamp row is
	// kept before the sweeper purges it, per spec.md §3.
	RateLimitEntryRetention = time.Hour

	// UploadWorkerPoolSize and DownloadWorkerPoolSize bound client-side
	// concurrent chunk transfers, per spec.md §5.
	UploadWorkerPoolSize   = 6
	DownloadWorkerPoolSize = 8

	// ChunkUploadRetryAttempts, ChunkUploadRetryBase describe the client
	// retry policy for a failed chunk upload, per spec.md §5.
	ChunkUploadRetryAttempts = 3
	ChunkUploadRetryBase     = time.Second

	// DefaultMaxFileSizeBytes and DefaultChunkedThresholdBytes are the
	// server-side ceilings from spec.md §6.4.
	DefaultMaxFileSizeBytes      = 500 << 20 // 500 MiB
	DefaultChunkedThresholdBytes = 100 << 20 // 100 MiB

	// ForwardedForHeader, RealIPHeader, CFConnectingIPHeader are consulted
	// in that order by the rate limiter to identify the client IP,
	// per spec.md §4.5.
	ForwardedForHeader   = "X-Forwarded-For"
	RealIPHeader         = "X-Real-IP"
	CFConnectingIPHeader = "CF-Connecting-IP"
)

// GenericPlaceholderFilename is displayed in place of the sender's original
// file name when filename hiding was requested at creation time.
const GenericPlaceholderFilename = "shared-file"
