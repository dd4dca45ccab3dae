package httpapi

import (
	"net/http"

	"github.com/zerodrop/zerodrop/internal/common"
)

type publicConfigResponse struct {
	MaxFileSizeBytes      int64  `json:"maxFileSizeBytes"`
	ChunkedThresholdBytes int64  `json:"chunkedThresholdBytes"`
	MinChunkBytes         int    `json:"minChunkBytes"`
	MaxChunkBytes         int    `json:"maxChunkBytes"`
	AnalyticsOrigin       string `json:"analyticsOrigin,omitempty"`
}

// publicConfig exposes the subset of server configuration a client needs
// to decide upload strategy (chunked vs. whole) and size limits, before
// it has encrypted anything. Per spec.md §6.4 this is the only
// configuration surfaced outside the operator's own environment.
func (h *handlers) publicConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publicConfigResponse{
		MaxFileSizeBytes:      h.cfg.MaxFileSizeBytes,
		ChunkedThresholdBytes: h.cfg.ChunkedThresholdBytes,
		MinChunkBytes:         common.MinChunkBytes,
		MaxChunkBytes:         common.MaxChunkBytes,
		AnalyticsOrigin:       h.cfg.AnalyticsOrigin,
	})
}
