package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/zerodrop/zerodrop/internal/codec"
	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/server/services"
)

const maxJSONBodyBytes = 1 << 20 // notes never carry a file; 1 MiB is generous for a text secret

type createNoteRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Views      int    `json:"views"`
	TTLSeconds int64  `json:"ttl_seconds"`

	EncryptionSalt string `json:"encryption_salt,omitempty"`
	ValidationSalt string `json:"validation_salt,omitempty"`
	KDFIterations  int    `json:"kdf_iterations,omitempty"`
	PassphraseHash string `json:"passphrase_hash,omitempty"`
}

type createNoteResponse struct {
	ID string `json:"id"`
}

func (h *handlers) createNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	ciphertext, err := codec.Decode(req.Ciphertext)
	if err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	iv, err := codec.Decode(req.IV)
	if err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	in := services.NoteInput{
		Ciphertext: ciphertext,
		IV:         iv,
		ViewsLeft:  req.Views,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	}
	if req.PassphraseHash != "" {
		encSalt, err1 := codec.Decode(req.EncryptionSalt)
		valSalt, err2 := codec.Decode(req.ValidationSalt)
		if err1 != nil || err2 != nil {
			writeError(w, common.ErrValidation)
			return
		}
		in.EncryptionSalt = encSalt
		in.ValidationSalt = valSalt
		in.KDFIterations = req.KDFIterations
		in.PassphraseHash = req.PassphraseHash
	}

	n, err := h.store.CreateNote(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createNoteResponse{ID: n.ID})
}

type noteMetaResponse struct {
	ValidationSalt string `json:"validation_salt"`
	EncryptionSalt string `json:"encryption_salt"`
	Iterations     int    `json:"iterations"`
}

// noteMeta exposes the passphrase parameters needed to re-derive the
// validation hash client-side. Per spec.md §4.4 it only ever returns data
// for a live, passphrase-protected note; anything else is reported as
// common.ErrGone so a guesser cannot distinguish "no such note" from
// "note isn't passphrase-protected".
func (h *handlers) noteMeta(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		writeError(w, common.ErrValidation)
		return
	}
	n, err := h.store.PeekNote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !n.IsPassphraseProtected() {
		writeError(w, common.ErrGone)
		return
	}
	writeJSON(w, http.StatusOK, noteMetaResponse{
		ValidationSalt: codec.Encode(n.ValidationSalt),
		EncryptionSalt: codec.Encode(n.EncryptionSalt),
		Iterations:     n.KDFIterations,
	})
}

type validatePassphraseRequest struct {
	Hash string `json:"hash"`
}

type validatePassphraseResponse struct {
	Valid bool `json:"valid"`
}

func (h *handlers) validateNotePassphrase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		writeError(w, common.ErrValidation)
		return
	}
	var req validatePassphraseRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	if err := h.store.ValidateNotePassphrase(r.Context(), id, req.Hash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validatePassphraseResponse{Valid: true})
}

type fetchNoteResponse struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

func (h *handlers) fetchNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		writeError(w, common.ErrValidation)
		return
	}
	n, err := h.store.BurnNote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchNoteResponse{
		Ciphertext: codec.Encode(n.Ciphertext),
		IV:         codec.Encode(n.IV),
	})
}
