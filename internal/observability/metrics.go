package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Card outcome labels.
const (
	OutcomeExtracted = "extracted"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics tracks operational metrics for a scrape run.
// All methods are safe on a nil receiver.
type Metrics struct {
	Registry         *prometheus.Registry
	CategoriesTotal  prometheus.Counter
	CardsTotal       *prometheus.CounterVec
	MoreClicksTotal  prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	CategoryDuration prometheus.Histogram

	categories atomic.Int64
	extracted  atomic.Int64
	skipped    atomic.Int64
	clicks     atomic.Int64
	errors     atomic.Int64

	server *http.Server
	logger *slog.Logger
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	categories := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loadmore_categories_total",
		Help: "Total category pages scraped.",
	})
	cards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loadmore_cards_total",
		Help: "Product cards processed by outcome.",
	}, []string{"outcome"})
	clicks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loadmore_more_clicks_total",
		Help: "Total clicks on the more control.",
	})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loadmore_errors_total",
		Help: "Errors by kind.",
	}, []string{"kind"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loadmore_category_duration_seconds",
		Help:    "Time spent expanding and extracting one category.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	registry.MustRegister(categories, cards, clicks, errorsTotal, duration)

	return &Metrics{
		Registry:         registry,
		CategoriesTotal:  categories,
		CardsTotal:       cards,
		MoreClicksTotal:  clicks,
		ErrorsTotal:      errorsTotal,
		CategoryDuration: duration,
		logger:           logger.With("component", "metrics"),
	}
}

// IncCategory records a finished category and how long it took.
func (m *Metrics) IncCategory(d time.Duration) {
	if m == nil {
		return
	}
	m.categories.Add(1)
	m.CategoriesTotal.Inc()
	m.CategoryDuration.Observe(d.Seconds())
}

// AddCards adds n cards with the given outcome label.
func (m *Metrics) AddCards(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	switch outcome {
	case OutcomeExtracted:
		m.extracted.Add(int64(n))
	case OutcomeSkipped:
		m.skipped.Add(int64(n))
	}
	m.CardsTotal.WithLabelValues(outcome).Add(float64(n))
}

// IncClick records one more-control click.
func (m *Metrics) IncClick() {
	if m == nil {
		return
	}
	m.clicks.Add(1)
	m.MoreClicksTotal.Inc()
}

// IncError increments the errors counter for a kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.errors.Add(1)
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	if m == nil {
		return fmt.Errorf("metrics not initialised")
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Snapshot returns the run totals as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"categories":  m.categories.Load(),
		"extracted":   m.extracted.Load(),
		"skipped":     m.skipped.Load(),
		"more_clicks": m.clicks.Load(),
		"errors":      m.errors.Load(),
	}
}
