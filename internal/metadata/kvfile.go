// Package metadata keeps the trim window for an asset durably available
// across its two storage locations.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteJSON atomically writes v as JSON to path: the payload lands in a
// temp file first and is renamed into place, so a reader never observes
// a partial write.
func WriteJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// ReadJSON reads the JSON file at path into v. A missing file returns
// os.ErrNotExist unchanged so callers can fall through.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// KV is the generic key-value file primitive backing the indexed store.
type KV interface {
	Put(key string, v interface{}) error
	Get(key string, v interface{}) error
	Delete(key string) error
	Clear() error
}

// FileKV stores one JSON file per key in a dedicated directory.
type FileKV struct {
	dir string
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

// path maps a key to its file, flattening separators so a key can never
// escape the directory.
func (kv *FileKV) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(kv.dir, safe+".json")
}

// Put writes the value for key.
func (kv *FileKV) Put(key string, v interface{}) error {
	return WriteJSON(kv.path(key), v)
}

// Get reads the value for key; a missing key returns os.ErrNotExist.
func (kv *FileKV) Get(key string, v interface{}) error {
	return ReadJSON(kv.path(key), v)
}

// Delete removes the value for key. Deleting an absent key is success.
func (kv *FileKV) Delete(key string) error {
	if err := os.Remove(kv.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every stored value.
func (kv *FileKV) Clear() error {
	entries, err := os.ReadDir(kv.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(kv.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
