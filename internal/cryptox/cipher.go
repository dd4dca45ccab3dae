// Package cryptox implements the client-side authenticated-encryption
// pipeline: AES-256-GCM over short plaintexts, whole binary files, and
// streamed chunked binary files with per-chunk authenticated data binding
// chunk order to a declared total.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zerodrop/zerodrop/internal/codec"
)

// AuthFailure is returned when an AES-GCM tag fails to verify. Callers
// should propagate it unchanged; only the reveal UI maps it to a
// human-facing message (see spec.md §7).
type AuthFailure struct {
	err error
}

func (e *AuthFailure) Error() string { return fmt.Sprintf("cryptox: authentication failed: %v", e.err) }
func (e *AuthFailure) Unwrap() error { return e.err }

func newAESGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != codec.KeyLength {
		return nil, fmt.Errorf("cryptox: key must be %d bytes, got %d", codec.KeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new gcm: %w", err)
	}
	return aead, nil
}

// EncryptBytes generates a fresh 12-byte IV and seals plaintext under key
// with no additional data. It is used for note bodies and for filename
// encryption (with its own fresh IV, under the same content key).
func EncryptBytes(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, nil, err
	}
	iv, err = codec.Random(codec.IVLength)
	if err != nil {
		return nil, nil, err
	}
	ciphertext = aead.Seal(nil, iv, plaintext, nil)
	return iv, ciphertext, nil
}

// DecryptBytes opens ciphertext (which carries its appended 16-byte GCM tag)
// under key and iv. On tag mismatch it returns an *AuthFailure.
func DecryptBytes(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, &AuthFailure{err: err}
	}
	return plaintext, nil
}

// EncryptFileWhole has the identical contract to EncryptBytes; ivBase is the
// IV used directly since there is only one "chunk" in whole-file mode.
func EncryptFileWhole(key, plaintext []byte) (ivBase, ciphertext []byte, err error) {
	return EncryptBytes(key, plaintext)
}

// DecryptFileWhole is DecryptBytes under the whole-file naming.
func DecryptFileWhole(key, ivBase, ciphertext []byte) ([]byte, error) {
	return DecryptBytes(key, ivBase, ciphertext)
}

// chunkIV derives the per-chunk IV by copying ivBase and overwriting its
// trailing 4 bytes with index as big-endian, per spec.md §4.2.
func chunkIV(ivBase []byte, index uint32) []byte {
	iv := make([]byte, len(ivBase))
	copy(iv, ivBase)
	binary.BigEndian.PutUint32(iv[len(iv)-4:], index)
	return iv
}

// chunkAAD returns the ASCII additional-authenticated-data string binding a
// chunk to its position within a specific total chunk count. This is the
// property that makes chunk reordering, duplication, dropping, or splicing
// across files undetectable-free: spec.md §9, "Chunk AAD".
func chunkAAD(index, total int) []byte {
	return []byte(fmt.Sprintf("chunk:%d/%d", index, total))
}

// ChunkEmitter receives one encrypted chunk at a time, in the order produced
// by EncryptFileChunked (ascending index).
type ChunkEmitter func(index int, ciphertext []byte) error

// EncryptFileChunked generates one fresh ivBase, then reads plaintext from r
// in chunkSize pieces (the final piece may be shorter) and calls emit once
// per chunk with its ciphertext (tag appended). It returns the ivBase used.
func EncryptFileChunked(key []byte, r io.Reader, chunkSize int, totalChunks int, emit ChunkEmitter) (ivBase []byte, err error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	ivBase, err = codec.Random(codec.IVLength)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, chunkSize)
	for i := 0; ; i++ {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			iv := chunkIV(ivBase, uint32(i))
			aad := chunkAAD(i, totalChunks)
			ciphertext := aead.Seal(nil, iv, buf[:n], aad)
			if err := emit(i, ciphertext); err != nil {
				return nil, fmt.Errorf("cryptox: emit chunk %d: %w", i, err)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("cryptox: read chunk %d: %w", i, readErr)
		}
	}
	return ivBase, nil
}

// ChunkFetcher returns the ciphertext for the chunk at index.
type ChunkFetcher func(index int) ([]byte, error)

// DecryptFileChunked re-derives each chunk's IV and AAD and authenticates
// it against key, writing plaintext to w in order. If any chunk fails
// authentication the whole decryption fails and no further chunks are
// fetched.
func DecryptFileChunked(key, ivBase []byte, total int, fetch ChunkFetcher, w io.Writer) error {
	aead, err := newAESGCM(key)
	if err != nil {
		return err
	}
	for i := 0; i < total; i++ {
		ciphertext, err := fetch(i)
		if err != nil {
			return fmt.Errorf("cryptox: fetch chunk %d: %w", i, err)
		}
		iv := chunkIV(ivBase, uint32(i))
		aad := chunkAAD(i, total)
		plaintext, err := aead.Open(nil, iv, ciphertext, aad)
		if err != nil {
			return &AuthFailure{err: fmt.Errorf("chunk %d/%d: %w", i, total, err)}
		}
		if _, err := w.Write(plaintext); err != nil {
			return fmt.Errorf("cryptox: write chunk %d: %w", i, err)
		}
	}
	return nil
}
