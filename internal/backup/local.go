package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// LocalSink keeps backups in a directory.
type LocalSink struct {
	dir string
}

// NewLocalSink creates a sink writing to dir, creating it if needed.
func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalSink{dir: dir}, nil
}

// Put writes the backup atomically.
func (s *LocalSink) Put(_ context.Context, name string, data []byte) error {
	return renameio.WriteFile(filepath.Join(s.dir, filepath.Base(name)), data, 0o644)
}

func (s *LocalSink) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalSink) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return filterNames(names), nil
}
