package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zerodrop/zerodrop/internal/codec"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	return codec.MustRandom(codec.KeyLength)
}

func TestEncryptDecryptBytes_RoundTrip(t *testing.T) {
	key := testKey(t)
	msg := []byte("hello")

	iv, ciphertext, err := EncryptBytes(key, msg)
	if err != nil {
		t.Fatalf("EncryptBytes error: %v", err)
	}
	if len(iv) != codec.IVLength {
		t.Fatalf("expected IV length %d, got %d", codec.IVLength, len(iv))
	}

	got, err := DecryptBytes(key, iv, ciphertext)
	if err != nil {
		t.Fatalf("DecryptBytes error: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("round trip mismatch: got %q want %q", got, msg)
	}
}

func TestDecryptBytes_WrongKeyFails(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	iv, ciphertext, err := EncryptBytes(key, []byte("secret"))
	if err != nil {
		t.Fatalf("EncryptBytes error: %v", err)
	}
	_, err = DecryptBytes(other, iv, ciphertext)
	var af *AuthFailure
	if !errors.As(err, &af) {
		t.Fatalf("expected *AuthFailure, got %v", err)
	}
}

func TestDecryptBytes_TamperedCiphertextFails(t *testing.T) {
	key := testKey(t)
	iv, ciphertext, err := EncryptBytes(key, []byte("secret"))
	if err != nil {
		t.Fatalf("EncryptBytes error: %v", err)
	}
	ciphertext[0] ^= 0xFF
	_, err = DecryptBytes(key, iv, ciphertext)
	var af *AuthFailure
	if !errors.As(err, &af) {
		t.Fatalf("expected *AuthFailure, got %v", err)
	}
}

func chunkCollector() (ChunkEmitter, func() [][]byte) {
	var chunks [][]byte
	return func(index int, ciphertext []byte) error {
			for len(chunks) <= index {
				chunks = append(chunks, nil)
			}
			chunks[index] = append([]byte{}, ciphertext...)
			return nil
		}, func() [][]byte {
			return chunks
		}
}

func TestEncryptDecryptFileChunked_RoundTrip(t *testing.T) {
	key := testKey(t)
	plaintext := bytes.Repeat([]byte("0123456789abcdef"), 1000) // 16000 bytes
	chunkSize := 4096
	total := (len(plaintext) + chunkSize - 1) / chunkSize

	emit, collect := chunkCollector()
	ivBase, err := EncryptFileChunked(key, bytes.NewReader(plaintext), chunkSize, total, emit)
	if err != nil {
		t.Fatalf("EncryptFileChunked error: %v", err)
	}
	chunks := collect()
	if len(chunks) != total {
		t.Fatalf("expected %d chunks, got %d", total, len(chunks))
	}

	var out bytes.Buffer
	fetch := func(index int) ([]byte, error) { return chunks[index], nil }
	if err := DecryptFileChunked(key, ivBase, total, fetch, &out); err != nil {
		t.Fatalf("DecryptFileChunked error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), plaintext) {
		t.Fatalf("round trip mismatch: got %d bytes want %d", out.Len(), len(plaintext))
	}
}

func TestDecryptFileChunked_SwappedChunksFail(t *testing.T) {
	key := testKey(t)
	plaintext := bytes.Repeat([]byte("A"), 9000)
	chunkSize := 3000
	total := 3

	emit, collect := chunkCollector()
	ivBase, err := EncryptFileChunked(key, bytes.NewReader(plaintext), chunkSize, total, emit)
	if err != nil {
		t.Fatalf("EncryptFileChunked error: %v", err)
	}
	chunks := collect()
	chunks[0], chunks[2] = chunks[2], chunks[0]

	var out bytes.Buffer
	fetch := func(index int) ([]byte, error) { return chunks[index], nil }
	err = DecryptFileChunked(key, ivBase, total, fetch, &out)
	var af *AuthFailure
	if !errors.As(err, &af) {
		t.Fatalf("expected *AuthFailure from swapped chunks, got %v", err)
	}
}

func TestDecryptFileChunked_SplicedDifferentTotalFails(t *testing.T) {
	key := testKey(t)

	emitA, collectA := chunkCollector()
	ivBase, err := EncryptFileChunked(key, bytes.NewReader(bytes.Repeat([]byte("A"), 6000)), 3000, 2, emitA)
	if err != nil {
		t.Fatalf("EncryptFileChunked A error: %v", err)
	}
	chunksA := collectA()

	emitB, collectB := chunkCollector()
	if _, err := EncryptFileChunked(key, bytes.NewReader(bytes.Repeat([]byte("B"), 9000)), 3000, 3, emitB); err != nil {
		t.Fatalf("EncryptFileChunked B error: %v", err)
	}
	chunksB := collectB()

	// Splice chunk 0 from file B (total=3) into file A's chunk set (total=2).
	spliced := [][]byte{chunksB[0], chunksA[1]}

	var out bytes.Buffer
	fetch := func(index int) ([]byte, error) { return spliced[index], nil }
	err = DecryptFileChunked(key, ivBase, 2, fetch, &out)
	var af *AuthFailure
	if !errors.As(err, &af) {
		t.Fatalf("expected *AuthFailure from spliced chunk, got %v", err)
	}
}

func TestDecryptFileChunked_TamperedByteFails(t *testing.T) {
	key := testKey(t)
	emit, collect := chunkCollector()
	ivBase, err := EncryptFileChunked(key, bytes.NewReader(bytes.Repeat([]byte("x"), 5000)), 2048, 3, emit)
	if err != nil {
		t.Fatalf("EncryptFileChunked error: %v", err)
	}
	chunks := collect()
	chunks[1][0] ^= 0x01

	var out bytes.Buffer
	fetch := func(index int) ([]byte, error) { return chunks[index], nil }
	err = DecryptFileChunked(key, ivBase, 3, fetch, &out)
	var af *AuthFailure
	if !errors.As(err, &af) {
		t.Fatalf("expected *AuthFailure, got %v", err)
	}
}
