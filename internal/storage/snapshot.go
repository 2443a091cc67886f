package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/loadmore/internal/types"
)

const snapshotExt = ".html.br"

// SnapshotStore keeps brotli-compressed copies of fully expanded category
// pages so extraction can be replayed without a browser.
type SnapshotStore struct {
	dir    string
	logger *slog.Logger
}

// NewSnapshotStore creates a snapshot store rooted at dir.
func NewSnapshotStore(dir string, logger *slog.Logger) (*SnapshotStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &SnapshotStore{
		dir:    dir,
		logger: logger.With("component", "snapshot_store"),
	}, nil
}

// Path returns the snapshot file for a category.
func (s *SnapshotStore) Path(category string) string {
	return filepath.Join(s.dir, category+snapshotExt)
}

// Save compresses html and writes it, replacing any earlier snapshot.
func (s *SnapshotStore) Save(category, html string) error {
	path := s.Path(category)
	f, err := os.Create(path)
	if err != nil {
		return &types.StorageError{Backend: "snapshot", Err: err}
	}

	bw := brotli.NewWriterLevel(f, brotli.DefaultCompression)
	if _, err := io.WriteString(bw, html); err != nil {
		bw.Close()
		f.Close()
		return &types.StorageError{Backend: "snapshot", Err: fmt.Errorf("compress %s: %w", path, err)}
	}
	if err := bw.Close(); err != nil {
		f.Close()
		return &types.StorageError{Backend: "snapshot", Err: fmt.Errorf("compress %s: %w", path, err)}
	}
	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: "snapshot", Err: err}
	}

	s.logger.Debug("snapshot saved", "path", path, "bytes", len(html))
	return nil
}

// Load returns the decompressed page for a category, or ErrNoSnapshot.
func (s *SnapshotStore) Load(category string) (string, error) {
	path := s.Path(category)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, types.ErrNoSnapshot)
	}
	if err != nil {
		return "", &types.StorageError{Backend: "snapshot", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		return "", &types.StorageError{Backend: "snapshot", Err: fmt.Errorf("decompress %s: %w", path, err)}
	}
	return string(data), nil
}
