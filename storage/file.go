package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

var _ Storage = (*File)(nil)

// File stores each key in its own file under dir. Writes go to a temp file that
// is renamed over the target, so a crash never leaves a half-written value.
type File struct {
	dir    string
	logger *zap.Logger
}

func NewFile(dir string, logger *zap.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &File{dir: dir, logger: logger}, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			f.logger.Warn("Failed to remove temp file", zap.String("file", tmp.Name()), zap.Error(rmErr))
		}
	}()

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %q: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("failed to replace %q: %w", key, err)
	}
	return nil
}

// path hashes the key: keys such as "@RocketShoes:cart" are not portable file names.
func (f *File) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}
