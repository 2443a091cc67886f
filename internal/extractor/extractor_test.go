package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/loadmore/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// card renders a product card shaped like the demo shop's markup.
func card(title, desc, price string, stars int, reviews string) string {
	var icons strings.Builder
	for i := 0; i < stars; i++ {
		icons.WriteString(`<span class="ws-icon ws-icon-star"></span>`)
	}
	return fmt.Sprintf(`<div class="card thumbnail">
  <div class="card-body">
    <img class="img-fluid card-img-top image img-responsive" alt="item" src="/images/test-sites/e-commerce/items/cart2.png">
    <div class="caption">
      <h4 class="price float-end card-title pull-right">%s</h4>
      <h4><a href="/test-sites/e-commerce/more/product/60" class="title" title="%s">%s</a></h4>
      <p class="description card-text">%s</p>
    </div>
    <div class="ratings">
      <p class="review-count float-end">%s</p>
      <p data-rating="%d">%s</p>
    </div>
  </div>
</div>`, price, title, title, desc, reviews, stars, icons.String())
}

var engines = []Extractor{NewCSSExtractor(testLogger), NewXPathExtractor(testLogger)}

func TestExtract(t *testing.T) {
	html := card("Lenovo ThinkPad X240", "12.5\", Core i5-4300U,\n   8GB, 240GB SSD, Win7 Pro 64bit", "$1311.99", 3, "12 reviews")

	for _, ex := range engines {
		t.Run(ex.Name(), func(t *testing.T) {
			p, err := ex.Extract(html)
			require.NoError(t, err)
			assert.Equal(t, types.Product{
				Title:        "Lenovo ThinkPad X240",
				Description:  "12.5\", Core i5-4300U, 8GB, 240GB SSD, Win7 Pro 64bit",
				Price:        1311.99,
				Rating:       3,
				NumOfReviews: 12,
			}, p)
		})
	}
}

func TestExtractRatingIgnoresOtherIcons(t *testing.T) {
	html := strings.Replace(card("Nokia 123", "7 day battery", "$24.99", 4, "1 review"),
		`<p data-rating="4">`, `<p data-rating="4"><span class="ws-icon ws-icon-heart"></span>`, 1)

	for _, ex := range engines {
		t.Run(ex.Name(), func(t *testing.T) {
			p, err := ex.Extract(html)
			require.NoError(t, err)
			assert.Equal(t, 4, p.Rating)
			assert.Equal(t, 1, p.NumOfReviews)
		})
	}
}

func TestExtractEmptyDescription(t *testing.T) {
	html := card("Galaxy Tab", "", "$251.99", 0, "0 reviews")
	for _, ex := range engines {
		p, err := ex.Extract(html)
		require.NoError(t, err, ex.Name())
		assert.Empty(t, p.Description)
		assert.Zero(t, p.Rating)
	}
}

func TestExtractFailures(t *testing.T) {
	good := card("Acer Aspire", "Acer", "$299.00", 2, "5 reviews")

	tests := []struct {
		name  string
		html  string
		field string
		want  error
	}{
		{"missing title", strings.Replace(good, `class="title"`, `class="name"`, 1), FieldTitle, types.ErrElementNotFound},
		{"missing title attribute", strings.Replace(good, `title="Acer Aspire"`, ``, 1), FieldTitle, types.ErrMissingAttribute},
		{"missing description", strings.Replace(good, `description card-text`, `summary`, 1), FieldDescription, types.ErrElementNotFound},
		{"missing price", strings.Replace(good, `price float-end`, `cost`, 1), FieldPrice, types.ErrElementNotFound},
		{"malformed price", strings.Replace(good, `$299.00`, `call us`, 1), FieldPrice, types.ErrMalformedNumber},
		{"missing reviews", strings.Replace(good, `review-count float-end`, `reviews`, 1), FieldReviews, types.ErrElementNotFound},
		{"malformed reviews", strings.Replace(good, `5 reviews`, `many reviews`, 1), FieldReviews, types.ErrMalformedNumber},
	}

	for _, ex := range engines {
		for _, tt := range tests {
			t.Run(ex.Name()+"/"+tt.name, func(t *testing.T) {
				_, err := ex.Extract(tt.html)
				require.Error(t, err)

				var cerr *types.CardError
				require.True(t, errors.As(err, &cerr))
				assert.Equal(t, tt.field, cerr.Field)
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			})
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$299.00", 299.0},
		{"$19.99", 19.99},
		{" $1101.83 ", 1101.83},
		{"24", 24},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "$", "free", "$-5.00", "$1,0", "$NaN", "$Inf", "$-Inf", "$infinity"} {
		_, err := ParsePrice(bad)
		assert.ErrorIs(t, err, types.ErrMalformedNumber, bad)
	}
}

func TestParseReviewCount(t *testing.T) {
	got, err := ParseReviewCount("12 reviews")
	require.NoError(t, err)
	assert.Equal(t, 12, got)

	got, err = ParseReviewCount("1 review")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = ParseReviewCount("  7\nreviews")
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	for _, bad := range []string{"", "   ", "no reviews", "-3 reviews", "1.5 reviews"} {
		_, err := ParseReviewCount(bad)
		assert.ErrorIs(t, err, types.ErrMalformedNumber, bad)
	}
}

func TestCards(t *testing.T) {
	page := `<html><body><div class="row">` +
		card("One", "first", "$1.00", 1, "1 review") +
		card("Two", "second", "$2.00", 2, "2 reviews") +
		`<div class="card">not a thumbnail</div>` +
		`</div><a class="btn ecomerce-items-scroll-more" href="#">More</a></body></html>`

	for _, ex := range engines {
		t.Run(ex.Name(), func(t *testing.T) {
			cards, err := ex.Cards(page, ".card.thumbnail")
			require.NoError(t, err)
			require.Len(t, cards, 2)

			results := ExtractAll(ex, cards)
			require.Len(t, results, 2)
			assert.True(t, results[0].OK())
			assert.Equal(t, "One", results[0].Product.Title)
			assert.Equal(t, "Two", results[1].Product.Title)
			assert.Equal(t, 2, results[1].Product.Rating)
		})
	}
}

func TestExtractAllIndexesFailures(t *testing.T) {
	cards := []string{
		card("Ok", "fine", "$3.00", 3, "3 reviews"),
		card("Broken", "bad", "N/A", 3, "3 reviews"),
	}
	results := ExtractAll(NewCSSExtractor(testLogger), cards)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())

	var cerr *types.CardError
	require.True(t, errors.As(results[1].Err, &cerr))
	assert.Equal(t, 1, cerr.Index)
	assert.Equal(t, FieldPrice, cerr.Field)
}

func TestClassXPath(t *testing.T) {
	got, err := ClassXPath(".card.thumbnail")
	require.NoError(t, err)
	assert.Equal(t, "//*[contains(concat(' ', normalize-space(@class), ' '), ' card ') and contains(concat(' ', normalize-space(@class), ' '), ' thumbnail ')]", got)

	got, err = ClassXPath("a.title")
	require.NoError(t, err)
	assert.Equal(t, "//a[contains(concat(' ', normalize-space(@class), ' '), ' title ')]", got)

	_, err = ClassXPath("div > .card")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ex, err := New("xpath", testLogger)
	require.NoError(t, err)
	assert.Equal(t, "xpath", ex.Name())

	ex, err = New("", testLogger)
	require.NoError(t, err)
	assert.Equal(t, "css", ex.Name())

	_, err = New("regex", testLogger)
	assert.Error(t, err)
}
