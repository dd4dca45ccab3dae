// Package secretclient implements the client-side halves of the note and
// file operations described in spec.md §4: it derives keys, encrypts
// plaintext before it ever reaches transport.Client, and decrypts
// ciphertext the server hands back. The server never sees a key or a
// plaintext byte.
package secretclient

import (
	"context"
	"fmt"
	"time"

	"github.com/zerodrop/zerodrop/internal/client/transport"
	"github.com/zerodrop/zerodrop/internal/codec"
	"github.com/zerodrop/zerodrop/internal/cryptox"
)

// Client wraps a transport.Client with the encryption/decryption steps
// that must happen before data leaves, or after it arrives at, the caller.
type Client struct {
	t *transport.Client
}

// New wraps t.
func New(t *transport.Client) *Client {
	return &Client{t: t}
}

// CreatedNote is returned after a note is created: the share link's id,
// plus the content key the caller must fold into the link fragment. The
// key never travels to the server.
type CreatedNote struct {
	ID         string
	ContentKey []byte
}

// CreateNoteOptions configures an optional passphrase gate, per spec.md
// §4.1. Passphrase is cleared by the caller after use; this package does
// not retain it beyond the call that needs it.
type CreateNoteOptions struct {
	Passphrase string
	Views      int
	TTL        time.Duration
}

// CreateNote encrypts text under a freshly generated key and creates a
// note. If opts.Passphrase is non-empty the note is instead encrypted under
// a passphrase-derived key (returned as the content key) and gated by a
// server-checkable validation hash, the two derived from independent salts.
func (c *Client) CreateNote(ctx context.Context, text string, opts CreateNoteOptions) (*CreatedNote, error) {
	key := codec.MustRandom(codec.KeyLength)
	iv, ciphertext, err := cryptox.EncryptBytes(key, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("secretclient: encrypt note: %w", err)
	}

	req := transport.CreateNoteRequest{
		Ciphertext: codec.Encode(ciphertext),
		IV:         codec.Encode(iv),
		Views:      opts.Views,
		TTLSeconds: int64(opts.TTL.Seconds()),
	}

	if opts.Passphrase != "" {
		salts, err := cryptox.NewPassphraseSalts()
		if err != nil {
			return nil, fmt.Errorf("secretclient: new salts: %w", err)
		}
		req.EncryptionSalt = codec.Encode(salts.EncryptionSalt)
		req.ValidationSalt = codec.Encode(salts.ValidationSalt)
		req.KDFIterations = cryptox.DefaultIterations
		req.PassphraseHash = cryptox.DeriveValidationHash([]byte(opts.Passphrase), salts.ValidationSalt, cryptox.DefaultIterations)

		key = cryptox.DeriveEncryptionKey([]byte(opts.Passphrase), salts.EncryptionSalt, cryptox.DefaultIterations)
		iv, ciphertext, err = cryptox.EncryptBytes(key, []byte(text))
		if err != nil {
			return nil, fmt.Errorf("secretclient: encrypt note under passphrase key: %w", err)
		}
		req.Ciphertext = codec.Encode(ciphertext)
		req.IV = codec.Encode(iv)
	}

	resp, err := c.t.CreateNote(ctx, req)
	if err != nil {
		return nil, err
	}
	return &CreatedNote{ID: resp.ID, ContentKey: key}, nil
}

// NotePassphraseParams are the public KDF parameters needed to re-derive a
// candidate validation hash before spending the note's single view on a
// guess, per spec.md §4.4.
type NotePassphraseParams struct {
	EncryptionSalt []byte
	ValidationSalt []byte
	Iterations     int
}

func (c *Client) NotePassphraseParams(ctx context.Context, id string) (*NotePassphraseParams, error) {
	resp, err := c.t.NoteMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	encSalt, err := codec.Decode(resp.EncryptionSalt)
	if err != nil {
		return nil, fmt.Errorf("secretclient: decode encryption_salt: %w", err)
	}
	valSalt, err := codec.Decode(resp.ValidationSalt)
	if err != nil {
		return nil, fmt.Errorf("secretclient: decode validation_salt: %w", err)
	}
	return &NotePassphraseParams{EncryptionSalt: encSalt, ValidationSalt: valSalt, Iterations: resp.Iterations}, nil
}

// ValidateNotePassphrase asks the server whether passphrase's validation
// hash matches the stored one, without spending the note's view.
func (c *Client) ValidateNotePassphrase(ctx context.Context, id string, passphrase string, params *NotePassphraseParams) (bool, []byte, error) {
	hash := cryptox.DeriveValidationHash([]byte(passphrase), params.ValidationSalt, params.Iterations)
	if _, err := c.t.ValidateNotePassphrase(ctx, id, hash); err != nil {
		if transport.IsAuthFailure(err) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, cryptox.DeriveEncryptionKey([]byte(passphrase), params.EncryptionSalt, params.Iterations), nil
}

// FetchNote burns one view and decrypts the result under key (either the
// key minted by CreateNote, or one derived via ValidateNotePassphrase).
func (c *Client) FetchNote(ctx context.Context, id string, key []byte) (string, error) {
	resp, err := c.t.FetchNote(ctx, id)
	if err != nil {
		return "", err
	}
	ciphertext, err := codec.Decode(resp.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("secretclient: decode ciphertext: %w", err)
	}
	iv, err := codec.Decode(resp.IV)
	if err != nil {
		return "", fmt.Errorf("secretclient: decode iv: %w", err)
	}
	plaintext, err := cryptox.DecryptBytes(key, iv, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
