package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
)

// buildMultipart runs fill against a fresh multipart.Writer over an
// in-memory buffer and returns the finished body and its Content-Type.
// Chunks are bounded by common.MaxChunkBytes, so buffering in memory
// (rather than streaming via io.Pipe) keeps the upload path simple without
// risking unbounded growth.
func buildMultipart(fill func(w *multipart.Writer) error) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", fmt.Errorf("transport: build multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("transport: close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeJSONField(w *multipart.Writer, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal %s field: %w", name, err)
	}
	return w.WriteField(name, string(b))
}

// parseFilename extracts the filename from a Content-Disposition header in
// the RFC 6266 filename*=UTF-8''... form the server sends, falling back to
// the empty string if the header is absent or malformed.
func parseFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
