package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func homeResult() types.CategoryResult {
	return types.CategoryResult{
		Source: types.Source{Name: "home.csv", URL: "https://webscraper.io/test-sites/e-commerce/more/"},
		Products: []types.Product{
			{Title: "Acer Aspire", Description: "Laptop, 15.6\"", Price: 485.9, Rating: 4, NumOfReviews: 7},
			{Title: "iPhone", Description: "Black", Price: 24.99, Rating: 3, NumOfReviews: 0},
		},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCSVStorageWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(dir, testLogger)
	require.NoError(t, err)

	require.NoError(t, s.Store(context.Background(), homeResult()))
	require.NoError(t, s.Close())

	got := readFile(t, filepath.Join(dir, "home.csv"))
	lines := strings.Split(strings.TrimSuffix(got, "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "title,description,price,rating,num_of_reviews", lines[0])
	assert.Equal(t, `Acer Aspire,"Laptop, 15.6""",485.9,4,7`, lines[1])
	assert.Equal(t, "iPhone,Black,24.99,3,0", lines[2])
}

func TestCSVStorageWholePriceBytes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(dir, testLogger)
	require.NoError(t, err)

	res := types.CategoryResult{
		Source:   types.Source{Name: "laptops.csv", URL: "https://x/computers/laptops"},
		Products: []types.Product{{Title: "A", Description: "d", Price: 299, Rating: 4, NumOfReviews: 12}},
	}
	require.NoError(t, s.Store(context.Background(), res))
	assert.Equal(t, "title,description,price,rating,num_of_reviews\r\nA,d,299.0,4,12\r\n",
		readFile(t, filepath.Join(dir, "laptops.csv")))
}

func TestCSVStorageIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(dir, testLogger)
	require.NoError(t, err)
	path := s.Path(homeResult().Source)

	require.NoError(t, s.Store(context.Background(), homeResult()))
	first := readFile(t, path)
	require.NoError(t, s.Store(context.Background(), homeResult()))
	assert.Equal(t, first, readFile(t, path))
}

func TestCSVStorageEmptyCategory(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(dir, testLogger)
	require.NoError(t, err)

	res := types.CategoryResult{Source: types.Source{Name: "touch.csv", URL: "https://x/phones/touch"}}
	require.NoError(t, s.Store(context.Background(), res))
	assert.Equal(t, "title,description,price,rating,num_of_reviews\r\n", readFile(t, filepath.Join(dir, "touch.csv")))
}

func TestCSVStorageOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(dir, testLogger)
	require.NoError(t, err)

	require.NoError(t, s.Store(context.Background(), homeResult()))
	shorter := homeResult()
	shorter.Products = shorter.Products[1:]
	require.NoError(t, s.Store(context.Background(), shorter))

	got := readFile(t, filepath.Join(dir, "home.csv"))
	assert.Equal(t, 2, strings.Count(got, "\r\n"))
	assert.NotContains(t, got, "Acer")
}

func TestCSVStorageUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(dir, testLogger)
	require.NoError(t, err)

	res := homeResult()
	res.Source.Name = filepath.Join("missing", "home.csv")
	err = s.Store(context.Background(), res)
	require.Error(t, err)

	var serr *types.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "csv", serr.Backend)
	assert.Equal(t, "storage", types.ErrorKind(err))
}

func TestSnapshotRoundTrip(t *testing.T) {
	snaps, err := NewSnapshotStore(t.TempDir(), testLogger)
	require.NoError(t, err)

	html := "<html><body>" + strings.Repeat(`<div class="card thumbnail">x</div>`, 50) + "</body></html>"
	require.NoError(t, snaps.Save("laptops", html))

	info, err := os.Stat(snaps.Path("laptops"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(html)))

	got, err := snaps.Load("laptops")
	require.NoError(t, err)
	assert.Equal(t, html, got)
}

func TestSnapshotMissing(t *testing.T) {
	snaps, err := NewSnapshotStore(t.TempDir(), testLogger)
	require.NoError(t, err)

	_, err = snaps.Load("phones")
	assert.True(t, errors.Is(err, types.ErrNoSnapshot))
}

type fakeBackend struct {
	name   string
	stored []types.CategoryResult
	err    error
	closed bool
}

func (f *fakeBackend) Store(_ context.Context, r types.CategoryResult) error {
	f.stored = append(f.stored, r)
	return f.err
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func (f *fakeBackend) Name() string { return f.name }

func TestMultiStorageFanOut(t *testing.T) {
	a := &fakeBackend{name: "a"}
	b := &fakeBackend{name: "b", err: errors.New("disk full")}
	c := &fakeBackend{name: "c"}
	m := NewMultiStorage([]Storage{a, b, c}, testLogger)

	err := m.Store(context.Background(), homeResult())
	require.EqualError(t, err, "disk full")
	for _, f := range []*fakeBackend{a, b, c} {
		assert.Len(t, f.stored, 1, f.name)
	}

	require.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}

func TestStoreAllStopsAtFirstError(t *testing.T) {
	f := &fakeBackend{name: "f", err: errors.New("boom")}
	err := StoreAll(context.Background(), f, []types.CategoryResult{homeResult(), homeResult()})
	require.Error(t, err)
	assert.Len(t, f.stored, 1)
}

func TestNewCSVOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := New(context.Background(), config.StorageConfig{Types: []string{"csv"}, OutputDir: dir}, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "csv", s.Name())
	require.NoError(t, s.Close())
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Types: []string{"parquet"}}, testLogger)
	assert.Error(t, err)

	_, err = New(context.Background(), config.StorageConfig{}, testLogger)
	assert.Error(t, err)
}

type fakeCollection struct {
	deleted  []interface{}
	inserted []interface{}
}

func (f *fakeCollection) DeleteMany(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.deleted = append(f.deleted, filter)
	return &mongo.DeleteResult{}, nil
}

func (f *fakeCollection) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	f.inserted = append(f.inserted, docs...)
	return &mongo.InsertManyResult{}, nil
}

func TestMongoStorageReplacesCategory(t *testing.T) {
	coll := &fakeCollection{}
	s := &MongoStorage{collection: coll, logger: testLogger}

	require.NoError(t, s.Store(context.Background(), homeResult()))
	require.Equal(t, []interface{}{bson.M{"category": "home"}}, coll.deleted)
	require.Len(t, coll.inserted, 2)

	doc := coll.inserted[1].(productDoc)
	assert.Equal(t, "home", doc.Category)
	assert.Equal(t, 1, doc.Position)
	assert.Equal(t, "iPhone", doc.Title)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "iPhone", m["title"])
	assert.Equal(t, "https://webscraper.io/test-sites/e-commerce/more/", m["source_url"])

	require.NoError(t, s.Close())
}
