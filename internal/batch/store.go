// Package batch discovers CSV files, parses their rows into candidate
// records, and drives them through the record router across a bounded
// worker pool.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore abstracts where batch files live. Object-storage backends
// implement the same two operations; LocalStore reads a directory.
type FileStore interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalStore serves CSV files from a local directory.
type LocalStore struct {
	dir     string
	maxSize int64
}

// NewLocalStore creates a LocalStore. maxSizeMB caps individual file sizes;
// zero means 100 MB.
func NewLocalStore(dir string, maxSizeMB int) *LocalStore {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return &LocalStore{dir: dir, maxSize: int64(maxSizeMB) << 20}
}

// List returns the names of the CSV files in the store directory.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Open opens one file after checking its size against the configured cap.
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}
	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("file %s exceeds size limit (%d bytes)", name, s.maxSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
