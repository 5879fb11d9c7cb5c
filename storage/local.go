// Package storage persists uploaded file payloads on the local filesystem.
// Metadata lives in the files table; only the bytes live here.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes uploads under a single root directory. Stored names are
// prefixed with a random UUID so original names can never collide or
// traverse outside the root.
type LocalStore struct {
	root string
}

// NewLocalStore creates the uploads directory if needed and returns a store
// rooted there.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("storage: empty root directory")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the uploads directory path.
func (s *LocalStore) Root() string {
	return s.root
}

// StoredName generates the on-disk name for an upload: a UUID prefix plus the
// sanitized original base name.
func (s *LocalStore) StoredName(originalName string) string {
	base := filepath.Base(originalName)
	base = strings.ReplaceAll(base, string(os.PathSeparator), "_")
	if base == "." || base == ".." || base == "" {
		base = "file"
	}
	return uuid.New().String() + "-" + base
}

// Path returns the absolute-ish path for a stored name.
func (s *LocalStore) Path(storedName string) string {
	return filepath.Join(s.root, filepath.Base(storedName))
}

// Save streams src into the store under storedName and returns the number of
// bytes written. A partial write is removed before the error is returned.
func (s *LocalStore) Save(storedName string, src io.Reader) (int64, error) {
	path := s.Path(storedName)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("storage: create %s: %w", storedName, err)
	}

	n, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("storage: write %s: %w", storedName, err)
	}
	return n, nil
}

// Exists reports whether the payload for path is present on disk.
func (s *LocalStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the payload at path, tolerating an already-missing object.
func (s *LocalStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", path, err)
	}
	return nil
}

// List returns the stored names currently present in the uploads directory.
func (s *LocalStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
