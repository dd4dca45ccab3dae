package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/zerodrop/zerodrop/internal/codec"
	"golang.org/x/crypto/pbkdf2"
)

// MinIterations is the floor for PBKDF2 iteration counts, per spec.md §4.3.
const MinIterations = 210_000

// DefaultIterations is used when a caller does not override the iteration
// count at creation time.
const DefaultIterations = MinIterations

// DeriveKey runs PBKDF2-HMAC-SHA-256 over passphrase and salt for the given
// iteration count and returns a 32-byte output. The same function derives
// both the encryption key (under encryption_salt) and the validation hash
// (under validation_salt) — the caller is responsible for keeping the two
// salts independent (see NewPassphraseSalts).
func DeriveKey(passphrase []byte, salt []byte, iterations int) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, codec.KeyLength, sha256.New)
}

// PassphraseSalts holds the two independent salts a passphrase-mode secret
// needs: one to derive the client-only encryption key, one to derive the
// server-checkable validation hash. They must never be equal and must never
// be derived from one another.
type PassphraseSalts struct {
	EncryptionSalt []byte
	ValidationSalt []byte
}

// NewPassphraseSalts draws two independent 16-byte random salts. Keeping
// them independent (rather than one salt plus a domain-separation label) is
// a deliberate design choice: spec.md §9, "Two salts" — it makes the
// "server learns nothing about the encryption key" argument trivial because
// the stored hash is a function of inputs that never touch the encryption
// key's input space.
func NewPassphraseSalts() (*PassphraseSalts, error) {
	encSalt, err := codec.Random(codec.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("cryptox: encryption salt: %w", err)
	}
	valSalt, err := codec.Random(codec.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("cryptox: validation salt: %w", err)
	}
	return &PassphraseSalts{EncryptionSalt: encSalt, ValidationSalt: valSalt}, nil
}

// DeriveEncryptionKey derives the client-only AES key from a passphrase and
// its encryption_salt. This value never leaves the client.
func DeriveEncryptionKey(passphrase []byte, encryptionSalt []byte, iterations int) []byte {
	return DeriveKey(passphrase, encryptionSalt, iterations)
}

// DeriveValidationHash derives the server-checkable validation hash from a
// passphrase and its validation_salt, base64url-encoded for storage and
// wire transport as passphrase_hash.
func DeriveValidationHash(passphrase []byte, validationSalt []byte, iterations int) string {
	return codec.Encode(DeriveKey(passphrase, validationSalt, iterations))
}

// ValidationHashEquals performs a constant-time comparison between a
// candidate validation hash (base64url, as produced by DeriveValidationHash)
// and the value stored server-side, to avoid timing oracles on passphrase
// guesses. It never reveals which of any precondition failed, per
// spec.md §4.4.
func ValidationHashEquals(candidate, stored string) bool {
	if len(candidate) != len(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1
}
