package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zerodrop/zerodrop/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	noStore(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a common sentinel error to the HTTP status codes in
// spec.md §7 and writes a small JSON body. It never distinguishes "never
// existed" from "already consumed": both arrive here as common.ErrGone.
func writeError(w http.ResponseWriter, err error) {
	status, msg := statusForError(err)
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErrorStatus writes a status/message pair that falls outside the
// common sentinel taxonomy, e.g. 413 from an oversized request body.
func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation error"
	case errors.Is(err, common.ErrGone):
		return http.StatusNotFound, "gone"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrAuthFailure):
		return http.StatusUnauthorized, "invalid passphrase"
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, common.ErrCrossOrigin):
		return http.StatusForbidden, "cross-origin request refused"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
