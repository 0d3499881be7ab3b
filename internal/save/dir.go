// Package save writes downloaded reports to their final location: a local
// directory or an S3 bucket.
package save

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxNameAttempts bounds the "name (n).ext" search for a free file name.
const maxNameAttempts = 1000

// DirSaver stores downloads in a local directory.
type DirSaver struct {
	dir string
}

// NewDirSaver creates a saver rooted at dir.
func NewDirSaver(dir string) *DirSaver {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &DirSaver{dir: dir}
}

// EnsureDir creates the output directory if it doesn't exist.
func (d *DirSaver) EnsureDir() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", d.dir, err)
	}
	return nil
}

// Save writes body to a staged .part file and renames it into place. The
// staged file is removed on every path. An existing file is never
// overwritten; a numbered name is picked instead.
func (d *DirSaver) Save(ctx context.Context, filename string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := d.EnsureDir(); err != nil {
		return "", err
	}

	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	staged, err := os.CreateTemp(d.dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	stagedPath := staged.Name()
	defer func() { _ = os.Remove(stagedPath) }()

	if _, err := staged.Write(body); err != nil {
		_ = staged.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := staged.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	target, err := d.freePath(name)
	if err != nil {
		return "", err
	}
	if err := os.Rename(stagedPath, target); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return target, nil
}

func (d *DirSaver) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(d.dir, name)
	for i := 1; i <= maxNameAttempts; i++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		candidate = filepath.Join(d.dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, d.dir)
}

// SanitizeFilename reduces a server-suggested name to a safe base name.
func SanitizeFilename(filename string) (string, error) {
	name := strings.TrimSpace(strings.ReplaceAll(filename, `\`, "/"))
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid download file name %q", filename)
	}
	return name, nil
}
