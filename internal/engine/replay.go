package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/extractor"
	"github.com/IshaanNene/loadmore/internal/observability"
	"github.com/IshaanNene/loadmore/internal/storage"
	"github.com/IshaanNene/loadmore/internal/types"
)

// Replay extracts products from saved page snapshots instead of a live
// browser. Output matches what Run produced for the same pages.
func Replay(ctx context.Context, sources []types.Source, snaps *storage.SnapshotStore, ex extractor.Extractor, cfg config.ExtractConfig, logger *slog.Logger, m *observability.Metrics) ([]types.CategoryResult, error) {
	if len(sources) == 0 {
		return nil, types.ErrEmptyCatalog
	}
	logger = logger.With("component", "replay")

	results := make([]types.CategoryResult, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		category := src.Category()
		logger.Info("Start parsing " + category)

		html, err := snaps.Load(category)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", category, err)
		}
		cards, err := ex.Cards(html, cfg.CardSelector)
		if err != nil {
			return nil, fmt.Errorf("%s: split cards: %w", category, err)
		}
		res, err := Collect(src, extractor.ExtractAll(ex, cards), cfg.OnError, logger, m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", category, err)
		}
		results = append(results, res)
	}
	return results, nil
}
