package secretclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zerodrop/zerodrop/internal/client/transport"
	"github.com/zerodrop/zerodrop/internal/codec"
	"github.com/zerodrop/zerodrop/internal/common"
	"github.com/zerodrop/zerodrop/internal/cryptox"
)

// CreatedFile is returned after a file is fully uploaded.
type CreatedFile struct {
	ID         string
	ContentKey []byte
}

// UploadFileOptions configures filename hiding, an optional passphrase
// gate, the expiry TTL, and the chunk size to use once a file crosses
// the server's chunked-upload threshold.
type UploadFileOptions struct {
	HideFilename bool
	Passphrase   string
	TTL          time.Duration
	ChunkBytes   int
}

// UploadFile reads path, encrypts it under a freshly generated (or
// passphrase-derived) key, and uploads it whole or in chunks depending on
// its size relative to the server's published threshold (spec.md §6.4).
func (c *Client) UploadFile(ctx context.Context, path string, opts UploadFileOptions) (*CreatedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("secretclient: stat %s: %w", path, err)
	}

	cfg, err := c.t.PublicConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretclient: fetch public config: %w", err)
	}

	key := codec.MustRandom(codec.KeyLength)
	meta := transport.FileMetadataFields{
		SizeBytes:  info.Size(),
		TTLSeconds: int64(opts.TTL.Seconds()),
	}
	if err := c.setFilename(&meta, key, filenameOf(path), opts.HideFilename); err != nil {
		return nil, err
	}
	if opts.Passphrase != "" {
		if err := c.gatePassphrase(&meta, &key, opts.Passphrase); err != nil {
			return nil, err
		}
	}

	if info.Size() <= cfg.ChunkedThresholdBytes {
		id, err := c.uploadWhole(ctx, path, key, meta)
		if err != nil {
			return nil, err
		}
		return &CreatedFile{ID: id, ContentKey: key}, nil
	}

	chunkBytes := opts.ChunkBytes
	if chunkBytes < cfg.MinChunkBytes || chunkBytes > cfg.MaxChunkBytes {
		chunkBytes = cfg.MinChunkBytes
	}
	id, err := c.uploadChunked(ctx, path, key, meta, chunkBytes)
	if err != nil {
		return nil, err
	}
	return &CreatedFile{ID: id, ContentKey: key}, nil
}

func filenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// setFilename implements spec.md §4.2's two filename modes: by default the
// sender's file name travels in the clear (the server uses it for
// Content-Disposition on download); if hide is set, it is instead
// encrypted under the content key and the server only ever sees
// common.GenericPlaceholderFilename.
func (c *Client) setFilename(meta *transport.FileMetadataFields, key []byte, name string, hide bool) error {
	if !hide {
		meta.FileName = name
		return nil
	}
	iv, ciphertext, err := cryptox.EncryptBytes(key, []byte(name))
	if err != nil {
		return fmt.Errorf("secretclient: encrypt filename: %w", err)
	}
	meta.EncryptedFilename = codec.Encode(ciphertext)
	meta.FilenameIV = codec.Encode(iv)
	return nil
}

// DecryptFilename reverses setFilename, for rendering a file's original
// name after fetching its meta response.
func DecryptFilename(key []byte, encryptedFilenameB64u, filenameIVB64u string) (string, error) {
	ciphertext, err := codec.Decode(encryptedFilenameB64u)
	if err != nil {
		return "", fmt.Errorf("secretclient: decode encrypted_filename: %w", err)
	}
	iv, err := codec.Decode(filenameIVB64u)
	if err != nil {
		return "", fmt.Errorf("secretclient: decode filename_iv: %w", err)
	}
	name, err := cryptox.DecryptBytes(key, iv, ciphertext)
	if err != nil {
		return "", err
	}
	return string(name), nil
}

func (c *Client) gatePassphrase(meta *transport.FileMetadataFields, key *[]byte, passphrase string) error {
	salts, err := cryptox.NewPassphraseSalts()
	if err != nil {
		return fmt.Errorf("secretclient: new salts: %w", err)
	}
	meta.EncryptionSalt = codec.Encode(salts.EncryptionSalt)
	meta.ValidationSalt = codec.Encode(salts.ValidationSalt)
	meta.KDFIterations = cryptox.DefaultIterations
	meta.PassphraseHash = cryptox.DeriveValidationHash([]byte(passphrase), salts.ValidationSalt, cryptox.DefaultIterations)
	*key = cryptox.DeriveEncryptionKey([]byte(passphrase), salts.EncryptionSalt, cryptox.DefaultIterations)
	return nil
}

func (c *Client) uploadWhole(ctx context.Context, path string, key []byte, meta transport.FileMetadataFields) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secretclient: read %s: %w", path, err)
	}
	ivBase, ciphertext, err := cryptox.EncryptFileWhole(key, plaintext)
	if err != nil {
		return "", fmt.Errorf("secretclient: encrypt file: %w", err)
	}
	meta.IVBase = codec.Encode(ivBase)
	meta.TotalChunks = 1

	resp, err := c.t.UploadWhole(ctx, meta, bytes.NewReader(ciphertext))
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// uploadChunked encrypts path in chunkBytes pieces and uploads them with
// common.UploadWorkerPoolSize concurrent workers, per spec.md §5. Chunk 0's
// request carries iv_base; the server persists it on that call alone.
func (c *Client) uploadChunked(ctx context.Context, path string, key []byte, meta transport.FileMetadataFields, chunkBytes int) (string, error) {
	totalChunks := int((meta.SizeBytes + int64(chunkBytes) - 1) / int64(chunkBytes))
	if totalChunks < 1 {
		totalChunks = 1
	}
	meta.ChunkBytes = chunkBytes
	meta.TotalChunks = totalChunks
	meta.IVBase = ""

	initResp, err := c.t.InitChunkedUpload(ctx, meta)
	if err != nil {
		return "", err
	}
	fileID := initResp.ID

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("secretclient: open %s: %w", path, err)
	}
	defer f.Close()

	type chunk struct {
		index      int
		ciphertext []byte
	}
	chunks := make([]chunk, 0, totalChunks)
	var ivBase []byte
	emit := func(index int, ciphertext []byte) error {
		chunks = append(chunks, chunk{index: index, ciphertext: ciphertext})
		return nil
	}
	ivBase, err = cryptox.EncryptFileChunked(key, f, chunkBytes, totalChunks, emit)
	if err != nil {
		return "", fmt.Errorf("secretclient: encrypt chunks: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(common.UploadWorkerPoolSize)
	for _, ch := range chunks {
		ch := ch
		g.Go(func() error {
			ivb := ""
			if ch.index == 0 {
				ivb = codec.Encode(ivBase)
			}
			_, err := c.t.UploadChunk(gctx, fileID, ch.index, totalChunks, ivb, ch.ciphertext)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("secretclient: upload chunks: %w", err)
	}
	return fileID, nil
}

// FileMeta is the decoded form of the server's file meta response. FileName
// is the clear name as the server returned it (empty for a hidden name);
// a hidden name is recovered with DecryptFilename.
type FileMeta struct {
	FileName      string
	IVBase        []byte
	TotalChunks   int
	DownloadToken string
	TokenExpires  time.Time

	EncryptedFilename string // base64url; decrypt with DecryptFilename once the content key is known
	FilenameIV        string

	EncryptionSalt []byte
	ValidationSalt []byte
	Iterations     int
	PassphraseSet  bool
}

// HasHiddenFilename reports whether the sender hid the original file name,
// leaving the server with only a placeholder; the real name requires
// DecryptFilename plus the content key to recover.
func (m *FileMeta) HasHiddenFilename() bool {
	return m.EncryptedFilename != ""
}

func (c *Client) FileMeta(ctx context.Context, id string) (*FileMeta, error) {
	resp, err := c.t.FileMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &FileMeta{
		FileName:          resp.FileName,
		TotalChunks:       resp.TotalChunks,
		DownloadToken:     resp.DownloadToken,
		EncryptedFilename: resp.EncryptedFilename,
		FilenameIV:        resp.FilenameIV,
	}
	if resp.TokenExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.TokenExpiresAt); err == nil {
			out.TokenExpires = t
		}
	}
	if resp.IVBase != "" {
		ivBase, err := codec.Decode(resp.IVBase)
		if err != nil {
			return nil, fmt.Errorf("secretclient: decode iv_base: %w", err)
		}
		out.IVBase = ivBase
	}
	if resp.ValidationSalt != "" {
		encSalt, err := codec.Decode(resp.EncryptionSalt)
		if err != nil {
			return nil, fmt.Errorf("secretclient: decode encryption_salt: %w", err)
		}
		valSalt, err := codec.Decode(resp.ValidationSalt)
		if err != nil {
			return nil, fmt.Errorf("secretclient: decode validation_salt: %w", err)
		}
		out.EncryptionSalt = encSalt
		out.ValidationSalt = valSalt
		out.Iterations = resp.Iterations
		out.PassphraseSet = true
	}
	return out, nil
}

func (c *Client) ValidateFilePassphrase(ctx context.Context, id, passphrase string, meta *FileMeta) (bool, []byte, error) {
	hash := cryptox.DeriveValidationHash([]byte(passphrase), meta.ValidationSalt, meta.Iterations)
	if _, err := c.t.ValidateFilePassphrase(ctx, id, hash); err != nil {
		if transport.IsAuthFailure(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, cryptox.DeriveEncryptionKey([]byte(passphrase), meta.EncryptionSalt, meta.Iterations), nil
}

// DownloadFile burns the file's download token and writes the decrypted
// plaintext to destPath. For a chunked file it fetches chunks with
// common.DownloadWorkerPoolSize concurrent workers but writes them to disk
// in order, then finalizes to let the server reclaim the chunk blobs.
func (c *Client) DownloadFile(ctx context.Context, id string, key []byte, meta *FileMeta, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("secretclient: create %s: %w", destPath, err)
	}
	defer out.Close()

	if meta.TotalChunks <= 1 {
		return c.downloadWhole(ctx, id, key, meta, out)
	}
	return c.downloadChunked(ctx, id, key, meta, out)
}

func (c *Client) downloadWhole(ctx context.Context, id string, key []byte, meta *FileMeta, out io.Writer) error {
	body, _, err := c.t.DownloadWhole(ctx, id, meta.DownloadToken)
	if err != nil {
		return err
	}
	defer body.Close()

	ciphertext, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("secretclient: read ciphertext: %w", err)
	}
	plaintext, err := cryptox.DecryptFileWhole(key, meta.IVBase, ciphertext)
	if err != nil {
		return err
	}
	_, err = out.Write(plaintext)
	return err
}

func (c *Client) downloadChunked(ctx context.Context, id string, key []byte, meta *FileMeta, out io.Writer) error {
	chunks := make([][]byte, meta.TotalChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(common.DownloadWorkerPoolSize)
	for i := 0; i < meta.TotalChunks; i++ {
		i := i
		g.Go(func() error {
			data, err := c.t.DownloadChunk(gctx, id, meta.DownloadToken, i)
			if err != nil {
				return err
			}
			chunks[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fetch := func(index int) ([]byte, error) { return chunks[index], nil }
	if err := cryptox.DecryptFileChunked(key, meta.IVBase, meta.TotalChunks, fetch, out); err != nil {
		return err
	}

	_, err := c.t.FinalizeFile(ctx, id, meta.DownloadToken)
	return err
}
