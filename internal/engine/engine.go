package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/loadmore/internal/browser"
	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/expander"
	"github.com/IshaanNene/loadmore/internal/extractor"
	"github.com/IshaanNene/loadmore/internal/observability"
	"github.com/IshaanNene/loadmore/internal/storage"
	"github.com/IshaanNene/loadmore/internal/types"
)

// Malformed-card policies.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateStopped State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks run statistics.
type Stats struct {
	Categories atomic.Int64
	Extracted  atomic.Int64
	Skipped    atomic.Int64
	Clicks     atomic.Int64
	StartTime  time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"categories": s.Categories.Load(),
		"extracted":  s.Extracted.Load(),
		"skipped":    s.Skipped.Load(),
		"clicks":     s.Clicks.Load(),
		"elapsed":    time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

// Engine scrapes a catalog of category pages one at a time on a single page.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	page      browser.Page
	extractor extractor.Extractor
	expander  *expander.Expander
	metrics   *observability.Metrics
	snapshots *storage.SnapshotStore

	state atomic.Int32
	stats *Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSnapshots saves every expanded page before extraction.
func WithSnapshots(s *storage.SnapshotStore) Option {
	return func(e *Engine) { e.snapshots = s }
}

// New creates an Engine driving page.
func New(page browser.Page, ex extractor.Extractor, cfg *config.Config, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		page:      page,
		extractor: ex,
		stats:     &Stats{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.expander = expander.New(cfg.Expand, logger, expander.WithClickHook(func() {
		e.stats.Clicks.Add(1)
		e.metrics.IncClick()
	}))
	return e
}

// Stats returns the engine statistics.
func (e *Engine) Stats() *Stats { return e.stats }

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Run scrapes every source in order. Results are returned only when every
// category succeeded.
func (e *Engine) Run(ctx context.Context, sources []types.Source) ([]types.CategoryResult, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("engine is in state %s, cannot run", e.State())
	}
	defer e.state.Store(int32(StateStopped))

	if len(sources) == 0 {
		return nil, types.ErrEmptyCatalog
	}

	e.stats.StartTime = time.Now()
	e.logger.Debug("engine starting",
		"categories", len(sources),
		"extractor", e.extractor.Name(),
		"on_error", e.cfg.Extract.OnError,
	)

	results := make([]types.CategoryResult, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.scrape(ctx, src)
		if err != nil {
			// card failures are already counted by Collect
			var cerr *types.CardError
			if !errors.As(err, &cerr) {
				e.metrics.IncError(types.ErrorKind(err))
			}
			return nil, fmt.Errorf("%s: %w", src.Category(), err)
		}
		results = append(results, res)
	}

	e.logger.Debug("engine stopped", "stats", e.stats.Snapshot())
	return results, nil
}

func (e *Engine) scrape(ctx context.Context, src types.Source) (types.CategoryResult, error) {
	start := time.Now()
	category := src.Category()
	e.logger.Info("Start parsing " + category)

	clicks, err := e.expander.Expand(ctx, e.page, src.URL)
	if err != nil {
		return types.CategoryResult{}, err
	}

	if e.snapshots != nil {
		html, err := e.page.HTML(ctx)
		if err != nil {
			return types.CategoryResult{}, fmt.Errorf("read page html: %w", err)
		}
		if err := e.snapshots.Save(category, html); err != nil {
			return types.CategoryResult{}, err
		}
	}

	cards, err := e.page.Cards(ctx, e.cfg.Extract.CardSelector)
	if err != nil {
		return types.CategoryResult{}, fmt.Errorf("collect cards: %w", err)
	}

	res, err := Collect(src, extractor.ExtractAll(e.extractor, cards), e.cfg.Extract.OnError, e.logger, e.metrics)
	if err != nil {
		return types.CategoryResult{}, err
	}
	res.Clicks = clicks

	e.stats.Categories.Add(1)
	e.stats.Extracted.Add(int64(len(res.Products)))
	e.stats.Skipped.Add(int64(res.Skipped))
	e.metrics.IncCategory(time.Since(start))

	e.logger.Debug("category done",
		"category", category,
		"products", len(res.Products),
		"skipped", res.Skipped,
		"clicks", clicks,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// Collect applies the malformed-card policy to per-card results, keeping
// page order.
func Collect(src types.Source, cards []types.CardResult, policy string, logger *slog.Logger, m *observability.Metrics) (types.CategoryResult, error) {
	res := types.CategoryResult{Source: src, Products: make([]types.Product, 0, len(cards))}
	for _, c := range cards {
		if c.OK() {
			res.Products = append(res.Products, c.Product)
			continue
		}
		m.IncError(types.ErrorKind(c.Err))
		if policy != PolicySkip {
			m.AddCards(observability.OutcomeFailed, 1)
			return types.CategoryResult{}, c.Err
		}
		logger.Warn("skipping malformed card", "category", src.Category(), "index", c.Index, "error", c.Err)
		res.Skipped++
	}
	m.AddCards(observability.OutcomeExtracted, len(res.Products))
	m.AddCards(observability.OutcomeSkipped, res.Skipped)
	return res, nil
}
