package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Store = (*FSStore)(nil)

// envelope is the on-disk entry format. The run identifier doubles as the
// key so a read can verify the entry belongs to the key it was fetched for.
type envelope struct {
	Key      string          `json:"run_id"`
	CachedAt time.Time       `json:"cached_at"`
	Results  json.RawMessage `json:"results"`
}

// FSStore keeps one JSON file per key inside a single directory.
//
// Writes go through a temp file followed by a rename, so a crash mid-write
// leaves either the previous entry or none, never a torn one.
type FSStore struct {
	dir string
}

// NewFSStore returns a store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FSStore) Dir() string {
	return s.dir
}

// Put implements Store.
func (s *FSStore) Put(key string, blob []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(envelope{
		Key:      key,
		CachedAt: time.Now().UTC(),
		Results:  json.RawMessage(blob),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode entry %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write temp for %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: sync temp for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("cache: publish entry %s: %w", key, err)
	}
	return nil
}

// Get implements Store.
func (s *FSStore) Get(key string) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read entry %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if env.Key != key {
		return nil, false, fmt.Errorf("%w: %s: embedded key %q does not match", ErrCorrupt, key, env.Key)
	}
	return env.Results, true, nil
}

// Has implements Store.
func (s *FSStore) Has(key string) bool {
	if checkKey(key) != nil {
		return false
	}
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Delete implements Store.
func (s *FSStore) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: delete entry %s: %w", key, err)
	}
	return nil
}

// Keys implements Store.
func (s *FSStore) Keys() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("cache: list entries: %w", err)
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	return keys, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// checkKey rejects keys that would escape the store directory.
func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("cache: invalid key %q", key)
	}
	return nil
}
