package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FallbackNote is one locally retained note. Encrypted notes hold ciphertext
// here, never plaintext.
type FallbackNote struct {
	Key     string    `json:"key"`
	Content string    `json:"content"`
	SavedAt time.Time `json:"savedAt"`
}

type fallbackFile struct {
	// Current holds the scratch slot for the note being edited right now,
	// keyed separately so a crash before the first save loses nothing.
	Current *FallbackNote           `json:"current,omitempty"`
	Notes   map[string]FallbackNote `json:"notes"`
}

// FallbackStore retains note content in a local JSON file when the server is
// unreachable, mirroring the browser's localStorage scheme.
type FallbackStore struct {
	mu   sync.Mutex
	path string
}

// NewFallbackStore creates a store backed by the given file. The parent
// directory is created if needed.
func NewFallbackStore(path string) (*FallbackStore, error) {
	if path == "" {
		return nil, fmt.Errorf("fallback: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("fallback: create dir: %w", err)
	}
	return &FallbackStore{path: path}, nil
}

// Put retains content for a note key.
func (s *FallbackStore) Put(key, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data.Notes[key] = FallbackNote{Key: key, Content: content, SavedAt: time.Now().UTC()}
	return s.write(data)
}

// Get returns the retained content for a note key.
func (s *FallbackStore) Get(key string) (*FallbackNote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, false, err
	}
	note, ok := data.Notes[key]
	if !ok {
		return nil, false, nil
	}
	return &note, true, nil
}

// Delete drops the retained content for a note key, typically after a
// successful server save.
func (s *FallbackStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	delete(data.Notes, key)
	return s.write(data)
}

// SetCurrent fills the scratch slot for the note under edit.
func (s *FallbackStore) SetCurrent(key, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data.Current = &FallbackNote{Key: key, Content: content, SavedAt: time.Now().UTC()}
	return s.write(data)
}

// Current returns the scratch slot, if set.
func (s *FallbackStore) Current() (*FallbackNote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, false, err
	}
	if data.Current == nil {
		return nil, false, nil
	}
	return data.Current, true, nil
}

// ClearCurrent empties the scratch slot.
func (s *FallbackStore) ClearCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data.Current = nil
	return s.write(data)
}

func (s *FallbackStore) read() (*fallbackFile, error) {
	data := &fallbackFile{Notes: map[string]FallbackNote{}}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("fallback: read: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("fallback: parse: %w", err)
	}
	if data.Notes == nil {
		data.Notes = map[string]FallbackNote{}
	}
	return data, nil
}

func (s *FallbackStore) write(data *fallbackFile) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("fallback: encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o640); err != nil {
		return fmt.Errorf("fallback: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("fallback: write: %w", err)
	}
	return nil
}
