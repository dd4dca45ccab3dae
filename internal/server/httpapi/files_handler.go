package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zerodrop/zerodrop/internal/codec"
	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/server/services"
)

type fileMetadataFields struct {
	FileName    string `json:"file_name"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkBytes  int    `json:"chunk_bytes"`
	TotalChunks int    `json:"total_chunks"`
	IVBase      string `json:"iv_base,omitempty"`
	TTLSeconds  int64  `json:"ttl_seconds"`

	EncryptedFilename string `json:"encrypted_filename,omitempty"`
	FilenameIV        string `json:"filename_iv,omitempty"`

	EncryptionSalt string `json:"encryption_salt,omitempty"`
	ValidationSalt string `json:"validation_salt,omitempty"`
	KDFIterations  int    `json:"kdf_iterations,omitempty"`
	PassphraseHash string `json:"passphrase_hash,omitempty"`
}

func (m fileMetadataFields) toFileInput() (services.FileInput, error) {
	in := services.FileInput{
		FileName:    m.FileName,
		SizeBytes:   m.SizeBytes,
		ChunkBytes:  m.ChunkBytes,
		TotalChunks: m.TotalChunks,
		TTL:         time.Duration(m.TTLSeconds) * time.Second,
	}
	if m.IVBase != "" {
		ivBase, err := codec.Decode(m.IVBase)
		if err != nil {
			return in, common.ErrValidation
		}
		in.IVBase = ivBase
	}
	if m.EncryptedFilename != "" || m.FilenameIV != "" {
		ef, err1 := codec.Decode(m.EncryptedFilename)
		iv, err2 := codec.Decode(m.FilenameIV)
		if err1 != nil || err2 != nil {
			return in, common.ErrValidation
		}
		in.EncryptedFilename = ef
		in.FilenameIV = iv
	}
	if m.PassphraseHash != "" {
		encSalt, err1 := codec.Decode(m.EncryptionSalt)
		valSalt, err2 := codec.Decode(m.ValidationSalt)
		if err1 != nil || err2 != nil {
			return in, common.ErrValidation
		}
		in.EncryptionSalt = encSalt
		in.ValidationSalt = valSalt
		in.KDFIterations = m.KDFIterations
		in.PassphraseHash = m.PassphraseHash
	}
	return in, nil
}

type createFileResponse struct {
	ID          string `json:"id"`
	StoragePath string `json:"storage_path"`
}

// uploadWhole accepts a whole-file upload as multipart/form-data: a
// "metadata" part carrying fileMetadataFields as JSON, and a "file" part
// carrying the ciphertext. Body size is capped at cfg.ChunkedThresholdBytes
// since anything larger belongs in chunked mode.
func (h *handlers) uploadWhole(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.ChunkedThresholdBytes)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeErrorStatus(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var meta fileMetadataFields
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	meta.TotalChunks = 1

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	defer file.Close()

	in, err := meta.toFileInput()
	if err != nil {
		writeError(w, err)
		return
	}
	if in.SizeBytes <= 0 {
		in.SizeBytes = header.Size
	}

	f, err := h.store.CreateFile(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.PutWholeBlob(r.Context(), f, file, header.Size); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createFileResponse{ID: f.ID, StoragePath: f.StoragePath})
}

type initChunkedResponse struct {
	ID string `json:"id"`
}

// initChunked begins a chunked upload. iv_base is intentionally omitted
// from the client's metadata here; the real value arrives with chunk 0
// and is written by uploadChunk, per spec.md §4.4/§5.
func (h *handlers) initChunked(w http.ResponseWriter, r *http.Request) {
	var meta fileMetadataFields
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&meta); err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	meta.IVBase = ""

	in, err := meta.toFileInput()
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := h.store.CreateFile(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initChunkedResponse{ID: f.ID})
}

type uploadChunkResponse struct {
	OK bool `json:"ok"`
}

// uploadChunk accepts one chunk as multipart/form-data: fileId, index,
// total, an optional iv_base_b64u (required and only honored on index 0),
// and a "chunk" part carrying that chunk's ciphertext.
func (h *handlers) uploadChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(common.MaxChunkBytes)+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeErrorStatus(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	defer r.MultipartForm.RemoveAll()

	fileID := r.FormValue("fileId")
	if !isValidUUID(fileID) {
		writeError(w, common.ErrValidation)
		return
	}
	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	total, err := strconv.Atoi(r.FormValue("total"))
	if err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	f, err := h.store.PeekFile(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	if total != f.TotalChunks {
		writeError(w, common.ErrValidation)
		return
	}

	var ivBase []byte
	if ivb := r.FormValue("iv_base_b64u"); ivb != "" {
		ivBase, err = codec.Decode(ivb)
		if err != nil {
			writeError(w, common.ErrValidation)
			return
		}
	}

	chunk, header, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	defer chunk.Close()

	if err := h.store.PutChunk(r.Context(), f, index, ivBase, chunk, header.Size); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadChunkResponse{OK: true})
}

// downloadChunk serves one chunk's ciphertext, gated by a multi-use token.
func (h *handlers) downloadChunk(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	token := r.URL.Query().Get("downloadToken")
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if !isValidUUID(fileID) || token == "" || err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	f, rc, err := h.store.OpenDownloadChunk(r.Context(), token, index)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()
	if f.ID != fileID {
		writeError(w, common.ErrUnauthorized)
		return
	}

	noStore(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

type fileMetaResponse struct {
	FileName    string `json:"file_name"`
	IVBase      string `json:"iv_base,omitempty"`
	TotalChunks int    `json:"total_chunks"`

	EncryptedFilename string `json:"encrypted_filename,omitempty"`
	FilenameIV        string `json:"filename_iv,omitempty"`

	EncryptionSalt string `json:"encryption_salt,omitempty"`
	ValidationSalt string `json:"validation_salt,omitempty"`
	Iterations     int    `json:"iterations,omitempty"`

	DownloadToken  string `json:"downloadToken"`
	TokenExpiresAt string `json:"tokenExpiresAt"`
}

// fileMeta returns a file's public metadata and atomically mints a fresh
// download token: single-use for whole files, multi-use for chunked ones.
func (h *handlers) fileMeta(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		writeError(w, common.ErrValidation)
		return
	}
	f, err := h.store.PeekFile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.store.MintDownloadToken(r.Context(), id, f.IsChunked())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := fileMetaResponse{
		FileName:       f.FileName,
		TotalChunks:    f.TotalChunks,
		DownloadToken:  t.Token,
		TokenExpiresAt: t.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if len(f.IVBase) > 0 {
		resp.IVBase = codec.Encode(f.IVBase)
	}
	if f.HasHiddenFilename() {
		resp.EncryptedFilename = codec.Encode(f.EncryptedFilename)
		resp.FilenameIV = codec.Encode(f.FilenameIV)
	}
	if f.IsPassphraseProtected() {
		resp.EncryptionSalt = codec.Encode(f.EncryptionSalt)
		resp.ValidationSalt = codec.Encode(f.ValidationSalt)
		resp.Iterations = f.KDFIterations
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) validateFilePassphrase(w http.ResponseWriter, r *http.Request) {
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
	if err := h.store.ValidateFilePassphrase(r.Context(), id, req.Hash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validatePassphraseResponse{Valid: true})
}

type downloadRequest struct {
	DownloadToken string `json:"downloadToken"`
}

// downloadWhole burns a single-use token and streams back the whole
// file's ciphertext, with the sender-chosen display name attached via
// Content-Disposition. The server never decrypts, so this is the raw
// ciphertext blob exactly as uploaded.
func (h *handlers) downloadWhole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		writeError(w, common.ErrValidation)
		return
	}
	var req downloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	f, rc, err := h.store.OpenDownload(r.Context(), req.DownloadToken)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()
	if f.ID != id {
		writeError(w, common.ErrUnauthorized)
		return
	}

	name := f.FileName
	if name == "" {
		name = common.GenericPlaceholderFilename
	}
	noStore(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	io.Copy(w, rc)
}

type finalizeResponse struct {
	Success       bool `json:"success"`
	ChunksDeleted int  `json:"chunksDeleted"`
}

func (h *handlers) finalizeFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		writeError(w, common.ErrValidation)
		return
	}
	var req downloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	n, err := h.store.FinalizeFile(r.Context(), id, req.DownloadToken)
	if err != nil && !errors.Is(err, common.ErrAlreadyFinalized) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Success: true, ChunksDeleted: n})
}
