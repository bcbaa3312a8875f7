package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStorage keeps snapshot archives as flat files under one
// directory. Writes go through a temp file and rename so a crashed
// snapshot never leaves a half-written archive behind.
type FileStorage struct {
	dir string
}

// NewFileStorage opens (creating if needed) the snapshot directory.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

// Save writes one archive under name.
func (fs *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	tmp, err := os.CreateTemp(fs.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage snapshot %s: %w", name, err)
	}

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("flush snapshot %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(fs.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish snapshot %s: %w", name, err)
	}
	return nil
}

// Load opens the archive stored under name. The caller closes it.
func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(fs.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", name, err)
	}
	return f, nil
}

// List returns the archive names starting with prefix, sorted
// ascending so the lexically newest timestamped snapshot comes last.
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the archive stored under name.
func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	if err := os.Remove(filepath.Join(fs.dir, name)); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	return nil
}
