// Package extractor turns rendered product cards into Product records.
package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/IshaanNene/loadmore/internal/types"
)

// Field names used in CardError.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldRating      = "rating"
	FieldReviews     = "num_of_reviews"
	FieldCard        = "card"
)

// Extractor reads product fields out of card HTML.
type Extractor interface {
	// Extract parses the outer HTML of one card.
	Extract(cardHTML string) (types.Product, error)

	// Cards splits a full page into the outer HTML of every card matching selector.
	Cards(pageHTML, selector string) ([]string, error)

	// Name returns the engine identifier.
	Name() string
}

// New returns the extractor for the named engine ("css" or "xpath").
func New(engine string, logger *slog.Logger) (Extractor, error) {
	switch engine {
	case "", "css":
		return NewCSSExtractor(logger), nil
	case "xpath":
		return NewXPathExtractor(logger), nil
	default:
		return nil, fmt.Errorf("unknown extract engine %q", engine)
	}
}

// ExtractAll runs ex over every card, returning one result per card in order.
func ExtractAll(ex Extractor, cards []string) []types.CardResult {
	results := make([]types.CardResult, len(cards))
	for i, card := range cards {
		p, err := ex.Extract(card)
		if err != nil {
			var cerr *types.CardError
			if errors.As(err, &cerr) {
				cerr.Index = i
			}
		}
		results[i] = types.CardResult{Index: i, Product: p, Err: err}
	}
	return results
}

// ParsePrice converts "$299.00" into 299. NaN and infinities are rejected.
func ParsePrice(text string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(text, "$", ""))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q", types.ErrMalformedNumber, text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: price %q", types.ErrMalformedNumber, text)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative price %q", types.ErrMalformedNumber, text)
	}
	return v, nil
}

// ParseReviewCount reads the leading integer of "12 reviews".
func ParseReviewCount(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty review count", types.ErrMalformedNumber)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: review count %q", types.ErrMalformedNumber, text)
	}
	return n, nil
}

func fieldErr(field string, err error) error {
	return &types.CardError{Field: field, Err: err}
}

func missing(field, selector string) error {
	return fieldErr(field, fmt.Errorf("%w: %s", types.ErrElementNotFound, selector))
}

// collapse normalises whitespace the way a browser's innerText does for inline text.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
