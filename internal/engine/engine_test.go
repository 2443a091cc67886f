package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/loadmore/internal/browser/browsertest"
	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/extractor"
	"github.com/IshaanNene/loadmore/internal/observability"
	"github.com/IshaanNene/loadmore/internal/storage"
	"github.com/IshaanNene/loadmore/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func card(title, price string, stars, reviews int) string {
	return fmt.Sprintf(`<div class="card thumbnail"><div class="caption">
<h4 class="price float-end card-title pull-right">%s</h4>
<h4><a href="/p" class="title" title="%s">%s</a></h4>
<p class="description card-text">%s description</p></div>
<div class="ratings"><p class="review-count float-end">%d reviews</p>
<p data-rating="%d">%s</p></div></div>`,
		price, title, title, title, reviews, stars, strings.Repeat(`<span class="ws-icon ws-icon-star"></span>`, stars))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Expand.Settle = 0
	cfg.Expand.ClickRate = 0
	cfg.Expand.Timeout = 5 * time.Second
	return cfg
}

func source(name string) types.Source {
	return types.Source{Name: name + ".csv", URL: "https://shop.test/" + name}
}

func newEngine(t *testing.T, cfg *config.Config, shops map[string]*browsertest.Shop, opts ...Option) (*Engine, *browsertest.Page) {
	t.Helper()
	page := browsertest.NewPage(shops)
	ex, err := extractor.New(cfg.Extract.Engine, testLogger)
	require.NoError(t, err)
	return New(page, ex, cfg, testLogger, opts...), page
}

func TestRunKeepsCatalogAndPageOrder(t *testing.T) {
	shops := map[string]*browsertest.Shop{
		"https://shop.test/home":   {Cards: []string{card("A", "$1", 1, 1), card("B", "$2", 2, 2), card("C", "$3", 3, 3)}, PageSize: 2},
		"https://shop.test/phones": {Cards: []string{card("P", "$9.5", 5, 0)}},
	}
	e, page := newEngine(t, testConfig(), shops)

	results, err := e.Run(context.Background(), []types.Source{source("home"), source("phones")})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "home.csv", results[0].Source.Name)
	assert.Equal(t, 1, results[0].Clicks)
	var titles []string
	for _, p := range results[0].Products {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)

	assert.Equal(t, "phones.csv", results[1].Source.Name)
	assert.Equal(t, []types.Product{{Title: "P", Description: "P description", Price: 9.5, Rating: 5}}, results[1].Products)

	assert.Equal(t, []string{"https://shop.test/home", "https://shop.test/phones"}, page.Navigations)
	assert.Equal(t, StateStopped, e.State())

	snap := e.Stats().Snapshot()
	assert.Equal(t, int64(2), snap["categories"])
	assert.Equal(t, int64(4), snap["extracted"])
	assert.Equal(t, int64(1), snap["clicks"])
}

func TestRunAbortsOnMalformedCard(t *testing.T) {
	shops := map[string]*browsertest.Shop{
		"https://shop.test/home": {Cards: []string{card("A", "$1", 1, 1), card("B", "free", 2, 2)}},
	}
	e, _ := newEngine(t, testConfig(), shops)

	results, err := e.Run(context.Background(), []types.Source{source("home")})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, errors.Is(err, types.ErrMalformedNumber))

	var cerr *types.CardError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.Index)
	assert.Equal(t, "price", cerr.Field)
}

func TestRunSkipPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Extract.OnError = PolicySkip
	shops := map[string]*browsertest.Shop{
		"https://shop.test/home": {Cards: []string{card("A", "$1", 1, 1), card("B", "free", 2, 2), card("C", "$3", 3, 3)}},
	}
	m := observability.NewMetrics(testLogger)
	e, _ := newEngine(t, cfg, shops, WithMetrics(m))

	results, err := e.Run(context.Background(), []types.Source{source("home")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Products, 2)
	assert.Equal(t, 1, results[0].Skipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CardsTotal.WithLabelValues(observability.OutcomeExtracted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CardsTotal.WithLabelValues(observability.OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("malformed_number")))
}

func TestRunAbortsOnExpandError(t *testing.T) {
	cfg := testConfig()
	cfg.Expand.MaxClicks = 2
	shops := map[string]*browsertest.Shop{
		"https://shop.test/home":   {Cards: []string{card("A", "$1", 1, 1), card("B", "$2", 1, 1)}, PageSize: 1, NeverHide: true},
		"https://shop.test/phones": {Cards: []string{card("P", "$1", 1, 1)}},
	}
	e, page := newEngine(t, cfg, shops)

	_, err := e.Run(context.Background(), []types.Source{source("home"), source("phones")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMaxClicks))
	assert.Equal(t, []string{"https://shop.test/home"}, page.Navigations)
}

func TestRunEmptyCatalog(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	_, err := e.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, types.ErrEmptyCatalog))
}

func TestRunOnlyOnce(t *testing.T) {
	shops := map[string]*browsertest.Shop{"https://shop.test/home": {}}
	e, _ := newEngine(t, testConfig(), shops)

	_, err := e.Run(context.Background(), []types.Source{source("home")})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), []types.Source{source("home")})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	shops := map[string]*browsertest.Shop{"https://shop.test/home": {}}
	e, page := newEngine(t, testConfig(), shops)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, []types.Source{source("home")})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, page.Navigations)
}

func TestRunWritesCSV(t *testing.T) {
	shops := map[string]*browsertest.Shop{
		"https://shop.test/home": {Cards: []string{card("Acer", "$485.9", 4, 7), card("Dell", "$1000", 1, 0)}},
	}
	e, _ := newEngine(t, testConfig(), shops)

	results, err := e.Run(context.Background(), []types.Source{source("home")})
	require.NoError(t, err)

	dir := t.TempDir()
	out, err := storage.NewCSVStorage(dir, testLogger)
	require.NoError(t, err)
	require.NoError(t, storage.StoreAll(context.Background(), out, results))

	data, err := os.ReadFile(filepath.Join(dir, "home.csv"))
	require.NoError(t, err)
	assert.Equal(t, "title,description,price,rating,num_of_reviews\r\n"+
		"Acer,Acer description,485.9,4,7\r\n"+
		"Dell,Dell description,1000.0,1,0\r\n", string(data))
}

func TestReplayMatchesLiveRun(t *testing.T) {
	cfg := testConfig()
	shops := map[string]*browsertest.Shop{
		"https://shop.test/laptops": {Cards: []string{card("A", "$1", 1, 1), card("B", "$2", 2, 2), card("C", "$3", 3, 3)}, PageSize: 1},
	}
	snaps, err := storage.NewSnapshotStore(t.TempDir(), testLogger)
	require.NoError(t, err)
	e, _ := newEngine(t, cfg, shops, WithSnapshots(snaps))

	sources := []types.Source{source("laptops")}
	live, err := e.Run(context.Background(), sources)
	require.NoError(t, err)

	ex, err := extractor.New("xpath", testLogger)
	require.NoError(t, err)
	replayed, err := Replay(context.Background(), sources, snaps, ex, cfg.Extract, testLogger, nil)
	require.NoError(t, err)

	require.Len(t, replayed, 1)
	assert.Equal(t, live[0].Products, replayed[0].Products)
}

func TestReplayMissingSnapshot(t *testing.T) {
	snaps, err := storage.NewSnapshotStore(t.TempDir(), testLogger)
	require.NoError(t, err)
	ex, err := extractor.New("css", testLogger)
	require.NoError(t, err)

	_, err = Replay(context.Background(), []types.Source{source("home")}, snaps, ex, testConfig().Extract, testLogger, nil)
	assert.True(t, errors.Is(err, types.ErrNoSnapshot))
}
