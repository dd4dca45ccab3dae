// Package transport implements the HTTP client that drives the zerodrop
// backend API. It owns request/response marshalling, multipart chunk
// framing, and the retry policy for chunk uploads; it never touches key
// material — encryption and decryption happen one layer up, in
// secretclient.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zerodrop/zerodrop/internal/common"
)

// Client talks to one zerodrop server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client bound to baseURL with the given per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is returned for any non-2xx response; Status carries the HTTP
// status code and Message carries the server's {"error": "..."} body, if
// any was decoded.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zerodrop: server returned %d: %s", e.Status, e.Message)
}

// IsAuthFailure reports whether err is the server's "invalid passphrase"
// response, as opposed to a download-token's generic 401 or a transport
// failure. Callers use this to turn a wrong-passphrase attempt back into a
// normal false result rather than a hard error.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && apiErr.Message == "invalid passphrase"
}

// retryableStatus reports whether a failed HTTP response is worth retrying.
// 429 (rate limited) and 5xx (infrastructure) are transient; everything
// else is a permanent rejection of the request as sent.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transport: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("transport: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, out)
}

func (c *Client) decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode/100 != 2 {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(data, &body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// CreateNoteRequest mirrors httpapi.createNoteRequest.
type CreateNoteRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Views      int    `json:"views"`
	TTLSeconds int64  `json:"ttl_seconds"`

	EncryptionSalt string `json:"encryption_salt,omitempty"`
	ValidationSalt string `json:"validation_salt,omitempty"`
	KDFIterations  int    `json:"kdf_iterations,omitempty"`
	PassphraseHash string `json:"passphrase_hash,omitempty"`
}

type CreateNoteResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateNote(ctx context.Context, req CreateNoteRequest) (*CreateNoteResponse, error) {
	var resp CreateNoteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/notes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type NoteMetaResponse struct {
	ValidationSalt string `json:"validation_salt"`
	EncryptionSalt string `json:"encryption_salt"`
	Iterations     int    `json:"iterations"`
}

func (c *Client) NoteMeta(ctx context.Context, id string) (*NoteMetaResponse, error) {
	var resp NoteMetaResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/notes/"+id+"/meta", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type ValidatePassphraseRequest struct {
	Hash string `json:"hash"`
}

type ValidatePassphraseResponse struct {
	Valid bool `json:"valid"`
}

func (c *Client) ValidateNotePassphrase(ctx context.Context, id, hash string) (*ValidatePassphraseResponse, error) {
	var resp ValidatePassphraseResponse
	req := ValidatePassphraseRequest{Hash: hash}
	if err := c.doJSON(ctx, http.MethodPost, "/api/notes/"+id+"/validate-passphrase", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type FetchNoteResponse struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

func (c *Client) FetchNote(ctx context.Context, id string) (*FetchNoteResponse, error) {
	var resp FetchNoteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/notes/"+id+"/fetch", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type PublicConfigResponse struct {
	MaxFileSizeBytes      int64  `json:"maxFileSizeBytes"`
	ChunkedThresholdBytes int64  `json:"chunkedThresholdBytes"`
	MinChunkBytes         int    `json:"minChunkBytes"`
	MaxChunkBytes         int    `json:"maxChunkBytes"`
	AnalyticsOrigin       string `json:"analyticsOrigin,omitempty"`
}

func (c *Client) PublicConfig(ctx context.Context) (*PublicConfigResponse, error) {
	var resp PublicConfigResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/config", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FileMetadataFields mirrors httpapi.fileMetadataFields, the JSON shape
// carried in the "metadata" part of an upload and in init-chunked's body.
type FileMetadataFields struct {
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

type CreateFileResponse struct {
	ID          string `json:"id"`
	StoragePath string `json:"storage_path"`
}

// UploadWhole sends a whole-file upload as multipart/form-data: a
// "metadata" part (JSON) and a "file" part (ciphertext).
func (c *Client) UploadWhole(ctx context.Context, meta FileMetadataFields, ciphertext io.Reader) (*CreateFileResponse, error) {
	body, contentType, err := buildMultipart(func(w *multipart.Writer) error {
		if err := writeJSONField(w, "metadata", meta); err != nil {
			return err
		}
		// A part with an empty filename is not a file part to the server's
		// FormFile, so a hidden-name upload sends the placeholder instead.
		partName := meta.FileName
		if partName == "" {
			partName = common.GenericPlaceholderFilename
		}
		part, err := w.CreateFormFile("file", partName)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, ciphertext)
		return err
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/upload", body)
	if err != nil {
		return nil, fmt.Errorf("transport: new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: upload whole: %w", err)
	}
	defer resp.Body.Close()

	var out CreateFileResponse
	if err := c.decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type InitChunkedResponse struct {
	ID string `json:"id"`
}

func (c *Client) InitChunkedUpload(ctx context.Context, meta FileMetadataFields) (*InitChunkedResponse, error) {
	var resp InitChunkedResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/init-chunked", meta, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type UploadChunkResponse struct {
	OK bool `json:"ok"`
}

// UploadChunk sends one chunk with retry: transient failures (429, 5xx, or
// a transport error) are retried, for up to common.ChunkUploadRetryAttempts
// attempts in total, with exponential backoff starting at
// common.ChunkUploadRetryBase, per spec.md §5.
func (c *Client) UploadChunk(ctx context.Context, fileID string, index, total int, ivBase string, chunk []byte) (*UploadChunkResponse, error) {
	var out UploadChunkResponse

	backoff := retry.WithMaxRetries(common.ChunkUploadRetryAttempts-1, retry.NewExponential(common.ChunkUploadRetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, contentType, err := buildMultipart(func(w *multipart.Writer) error {
			if err := w.WriteField("fileId", fileID); err != nil {
				return err
			}
			if err := w.WriteField("index", strconv.Itoa(index)); err != nil {
				return err
			}
			if err := w.WriteField("total", strconv.Itoa(total)); err != nil {
				return err
			}
			if ivBase != "" {
				if err := w.WriteField("iv_base_b64u", ivBase); err != nil {
					return err
				}
			}
			part, err := w.CreateFormFile("chunk", fmt.Sprintf("chunk-%d", index))
			if err != nil {
				return err
			}
			_, err = part.Write(chunk)
			return err
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/chunk", body)
		if err != nil {
			return fmt.Errorf("transport: new request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("transport: upload chunk %d: %w", index, err))
		}
		defer resp.Body.Close()

		if decErr := c.decodeResponse(resp, &out); decErr != nil {
			var apiErr *APIError
			if errors.As(decErr, &apiErr) && retryableStatus(apiErr.Status) {
				return retry.RetryableError(decErr)
			}
			return decErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadChunk fetches one chunk's ciphertext, gated by a multi-use token.
func (c *Client) DownloadChunk(ctx context.Context, fileID, token string, index int) ([]byte, error) {
	url := fmt.Sprintf("%s/api/files/chunk?fileId=%s&downloadToken=%s&index=%d", c.baseURL, fileID, token, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: download chunk %d: %w", index, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, c.decodeResponse(resp, nil)
	}
	return io.ReadAll(resp.Body)
}

type FileMetaResponse struct {
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

func (c *Client) FileMeta(ctx context.Context, id string) (*FileMetaResponse, error) {
	var resp FileMetaResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/files/"+id+"/meta", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ValidateFilePassphrase(ctx context.Context, id, hash string) (*ValidatePassphraseResponse, error) {
	var resp ValidatePassphraseResponse
	req := ValidatePassphraseRequest{Hash: hash}
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/"+id+"/validate-passphrase", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadWhole burns a single-use token and returns the whole file's
// ciphertext along with the server's suggested file name.
func (c *Client) DownloadWhole(ctx context.Context, id, downloadToken string) (io.ReadCloser, string, error) {
	body, err := json.Marshal(struct {
		DownloadToken string `json:"downloadToken"`
	}{DownloadToken: downloadToken})
	if err != nil {
		return nil, "", fmt.Errorf("transport: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/"+id+"/download", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("transport: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("transport: download whole: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, "", c.decodeResponse(resp, nil)
	}
	return resp.Body, parseFilename(resp.Header.Get("Content-Disposition")), nil
}

type FinalizeResponse struct {
	Success       bool `json:"success"`
	ChunksDeleted int  `json:"chunksDeleted"`
}

func (c *Client) FinalizeFile(ctx context.Context, id, downloadToken string) (*FinalizeResponse, error) {
	var resp FinalizeResponse
	req := struct {
		DownloadToken string `json:"downloadToken"`
	}{DownloadToken: downloadToken}
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/"+id+"/finalize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
