package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists every product of one category, replacing earlier output.
	Store(ctx context.Context, result types.CategoryResult) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New builds the backends listed in cfg.Types. More than one backend is
// wrapped in a MultiStorage.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	var backends []Storage
	closeAll := func() {
		for _, b := range backends {
			_ = b.Close()
		}
	}

	for _, typ := range cfg.Types {
		var (
			s   Storage
			err error
		)
		switch typ {
		case "csv":
			s, err = NewCSVStorage(cfg.OutputDir, logger)
		case "mongodb":
			s, err = NewMongoStorage(ctx, cfg.Mongo, logger)
		default:
			err = fmt.Errorf("unsupported storage type: %s", typ)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		backends = append(backends, s)
	}

	switch len(backends) {
	case 0:
		return nil, fmt.Errorf("no storage backends configured")
	case 1:
		return backends[0], nil
	default:
		return NewMultiStorage(backends, logger), nil
	}
}

// StoreAll writes every category result in order, stopping at the first error.
func StoreAll(ctx context.Context, s Storage, results []types.CategoryResult) error {
	for _, r := range results {
		if err := s.Store(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
