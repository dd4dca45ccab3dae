package httpapi

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zerodrop/zerodrop/internal/common"
)

// clientIP takes the first value of X-Forwarded-For, then X-Real-IP, then
// CF-Connecting-IP, else "unknown", per spec.md §4.5.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get(common.ForwardedForHeader); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get(common.RealIPHeader); ip != "" {
		return ip
	}
	if ip := r.Header.Get(common.CFConnectingIPHeader); ip != "" {
		return ip
	}
	return "unknown"
}

// rateLimited wraps next with a per-IP sliding-window check keyed by key,
// admitting up to limit requests per window. A rejected request gets 429
// with Retry-After, per spec.md §6.1/§7.
func (h *handlers) rateLimited(key string, limit int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allowed, retryAfter := h.limiter.Allow(r.Context(), key, clientIP(r), limit); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(w, common.ErrRateLimited)
			return
		}
		next(w, r)
	}
}

// requireSameOrigin refuses state-changing requests whose Origin/Referer/
// Sec-Fetch-Site indicates a cross-origin caller, per spec.md §6.1.
func (h *handlers) requireSameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			writeError(w, common.ErrCrossOrigin)
			return
		}
		next(w, r)
	}
}

func sameOrigin(r *http.Request) bool {
	if site := r.Header.Get("Sec-Fetch-Site"); site != "" {
		return site == "same-origin" || site == "same-site" || site == "none"
	}

	host := r.Host
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == host
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		u, err := url.Parse(referer)
		if err != nil {
			return false
		}
		return u.Host == host
	}

	// No Origin, Referer, or Sec-Fetch-Site header at all: treat as
	// same-origin. Browsers always send at least one of these on a
	// cross-origin fetch/XHR; their absence means a same-tab navigation
	// or a non-browser client, neither of which this check defends against.
	return true
}

// noStore marks a response as never cacheable, per spec.md §6.1's
// "all responses to sensitive endpoints set Cache-Control: no-store".
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
