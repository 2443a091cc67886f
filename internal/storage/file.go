package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/loadmore/internal/types"
)

// CSVStorage writes one CSV file per category into a directory.
type CSVStorage struct {
	dir    string
	mu     sync.Mutex
	count  int
	files  int
	logger *slog.Logger
}

// NewCSVStorage creates a CSV storage rooted at dir.
func NewCSVStorage(dir string, logger *slog.Logger) (*CSVStorage, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVStorage{
		dir:    dir,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

// Path returns the file a category is written to.
func (s *CSVStorage) Path(src types.Source) string {
	return filepath.Join(s.dir, src.Name)
}

// Store truncates the category's file and writes a header plus one row per
// product. A category without products yields a header-only file.
func (s *CSVStorage) Store(_ context.Context, result types.CategoryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(result.Source)
	f, err := os.Create(path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create output file: %w", err)}
	}

	if err := writeCSV(f, result.Products); err != nil {
		f.Close()
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write %s: %w", path, err)}
	}
	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("close %s: %w", path, err)}
	}

	s.count += len(result.Products)
	s.files++
	if len(result.Products) == 0 {
		s.logger.Warn("category has no products, wrote header only", "path", path)
	}
	s.logger.Debug("CSV written", "path", path, "items", len(result.Products))
	return nil
}

func writeCSV(f *os.File, products []types.Product) error {
	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(types.Product{}.Header()); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, p := range products {
		if err := w.Write(p.Record()); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("CSV output complete", "dir", s.dir, "files", s.files, "items", s.count)
	return nil
}
