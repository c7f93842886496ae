// Package blob stores encrypted attachment payloads on the local
// filesystem. Content is always the already-encrypted, base64-encoded
// ciphertext; plaintext never reaches this package.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore writes each payload to its own ".enc" file with a generated
// UUID name under a fixed directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Write stores the content and returns the generated blob name.
func (s *FileStore) Write(_ context.Context, content string) (string, error) {
	name := uuid.New().String() + ".enc"
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	return name, nil
}

// Read returns the content of a stored blob.
func (s *FileStore) Read(_ context.Context, name string) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading blob: %w", err)
	}
	return string(content), nil
}

// Remove deletes a stored blob. Removing a blob that is already gone is not
// an error.
func (s *FileStore) Remove(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// path validates the blob name before touching the filesystem. Names are
// generated by Write; anything with path separators is rejected.
func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
