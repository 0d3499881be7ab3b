package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per key under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, name+".json")
}

// Load reads a snapshot.
func (f *FileStore) Load(_ context.Context, key string) (*Snapshot, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", key, err)
	}
	return decode(key, data)
}

// Save writes a snapshot through a temp file and rename, so readers never
// see a partial file.
func (f *FileStore) Save(_ context.Context, key string, snap *Snapshot) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write session %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session %s: %w", key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("failed to store session %s: %w", key, err)
	}
	return nil
}

// Delete removes a snapshot. Deleting a missing key is not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session %s: %w", key, err)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
