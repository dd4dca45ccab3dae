package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zerodrop/zerodrop/internal/filex"
)

// LocalStore implements Store on the local filesystem, for self-hosted
// deployments that do not want an S3-compatible dependency.
type LocalStore struct {
	root string
}

// NewLocalStore roots a LocalStore under dirName (created if missing).
func NewLocalStore(dirName string) (*LocalStore, error) {
	root, err := filex.EnsureSubdDir(dirName)
	if err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, s.root) {
		return "", os.ErrInvalid
	}
	return full, nil
}

// Put writes body to path, replacing any existing object.
func (s *LocalStore) Put(ctx context.Context, path string, body io.Reader, size int64) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o770); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o660)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, body)
	return err
}

// PutIfAbsent writes body to path only if it does not already exist,
// using O_EXCL so the create is atomic with respect to concurrent or
// retried writers.
func (s *LocalStore) PutIfAbsent(ctx context.Context, path string, body io.Reader, size int64) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o770); err != nil {
		return false, err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return false, err
	}
	return true, nil
}

// Get opens path for reading.
func (s *LocalStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes path. A missing object is not an error.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeletePrefix removes every object whose path begins with prefix.
func (s *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	full, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	matches, err := filepath.Glob(full + "*")
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			return err
		}
	}
	return nil
}
