// Package codec implements the URL-safe base64 encoding and cryptographic
// random-byte generation shared by every component that needs to put key
// material, salts, IVs, or identifiers into a URL or a JSON field.
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SaltLength is the size in bytes of a PBKDF2 salt.
const SaltLength = 16

// IVLength is the size in bytes of an AES-GCM nonce.
const IVLength = 12

// KeyLength is the size in bytes of an AES-256 key or a derived PBKDF2 output.
const KeyLength = 32

var encoding = base64.URLEncoding.WithPadding(base64.NoPadding)

// Encode returns the URL-safe, unpadded base64 representation of b.
func Encode(b []byte) string {
	return encoding.EncodeToString(b)
}

// Decode restores any stripped padding and decodes s from URL-safe base64.
// It rejects input containing characters outside the URL-safe alphabet.
func Decode(s string) ([]byte, error) {
	if err := validateAlphabet(s); err != nil {
		return nil, err
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return b, nil
}

func validateAlphabet(s string) error {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("codec: invalid character %q in base64url input", r)
		}
	}
	return nil
}

// Random returns n cryptographically random bytes read from the platform RNG.
// It never falls back to a weaker source; a read failure is a fatal condition
// for the caller since secrets cannot be safely generated without it.
func Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("codec: random: %w", err)
	}
	return b, nil
}

// MustRandom is Random for call sites that treat RNG failure as unrecoverable
// (e.g. package-level test fixtures). It panics on error.
func MustRandom(n int) []byte {
	b, err := Random(n)
	if err != nil {
		panic(err)
	}
	return b
}
