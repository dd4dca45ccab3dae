package httpapi

import (
	"net/http"
	"regexp"

	"github.com/zerodrop/zerodrop/internal/logging"
	"github.com/zerodrop/zerodrop/internal/server/config"
	"github.com/zerodrop/zerodrop/internal/server/services"
)

// handlers holds the components every endpoint draws on; register sets the
// per-endpoint rate limit ceilings from spec.md §6.1.
type handlers struct {
	store   *services.BurnStore
	limiter *services.RateLimiter
	cfg     *config.Config
	logger  logging.Logger
}

// uuidPattern is the canonical UUID v4 format from spec.md §6.1, checked
// before any id reaches the store.
var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func isValidUUID(id string) bool {
	return uuidPattern.MatchString(id)
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.Handle("POST /api/notes", h.rateLimited("note:create", 10, h.requireSameOrigin(h.createNote)))
	mux.Handle("GET /api/notes/{id}/meta", h.rateLimited("note:meta", 30, h.noteMeta))
	mux.Handle("POST /api/notes/{id}/validate-passphrase", h.rateLimited("note:validate", 30, h.requireSameOrigin(h.validateNotePassphrase)))
	mux.Handle("POST /api/notes/{id}/fetch", h.rateLimited("note:fetch", 30, h.requireSameOrigin(h.fetchNote)))

	mux.Handle("POST /api/files/upload", h.rateLimited("file:upload", 20, h.requireSameOrigin(h.uploadWhole)))
	mux.Handle("POST /api/files/init-chunked", h.rateLimited("file:init", 50, h.requireSameOrigin(h.initChunked)))
	mux.Handle("POST /api/files/chunk", h.rateLimited("file:chunk", 100, h.requireSameOrigin(h.uploadChunk)))
	mux.Handle("GET /api/files/chunk", http.HandlerFunc(h.downloadChunk))
	mux.Handle("GET /api/files/{id}/meta", http.HandlerFunc(h.fileMeta))
	mux.Handle("POST /api/files/{id}/validate-passphrase", h.rateLimited("file:validate", 200, h.requireSameOrigin(h.validateFilePassphrase)))
	mux.Handle("POST /api/files/{id}/download", h.rateLimited("file:download", 200, h.requireSameOrigin(h.downloadWhole)))
	mux.Handle("POST /api/files/{id}/finalize", h.requireSameOrigin(h.finalizeFile))

	mux.Handle("GET /api/config", http.HandlerFunc(h.publicConfig))
}
