package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/loadmore/internal/types"
)

// CSS selectors for the card fields.
const (
	TitleSelector       = ".title"
	DescriptionSelector = ".description.card-text"
	PriceSelector       = ".price.float-end"
	StarSelector        = ".ws-icon.ws-icon-star"
	ReviewsSelector     = ".review-count.float-end"
)

// CSSExtractor extracts card fields using CSS selectors via goquery.
type CSSExtractor struct {
	logger *slog.Logger
}

// NewCSSExtractor creates a new CSS selector extractor.
func NewCSSExtractor(logger *slog.Logger) *CSSExtractor {
	return &CSSExtractor{
		logger: logger.With("component", "css_extractor"),
	}
}

func (e *CSSExtractor) Name() string { return "css" }

// Extract implements Extractor.
func (e *CSSExtractor) Extract(cardHTML string) (types.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cardHTML))
	if err != nil {
		return types.Product{}, fieldErr(FieldCard, err)
	}

	title := doc.Find(TitleSelector).First()
	if title.Length() == 0 {
		return types.Product{}, missing(FieldTitle, TitleSelector)
	}
	titleText, ok := title.Attr("title")
	if !ok {
		return types.Product{}, fieldErr(FieldTitle, fmt.Errorf("%w: title", types.ErrMissingAttribute))
	}

	desc := doc.Find(DescriptionSelector).First()
	if desc.Length() == 0 {
		return types.Product{}, missing(FieldDescription, DescriptionSelector)
	}

	priceSel := doc.Find(PriceSelector).First()
	if priceSel.Length() == 0 {
		return types.Product{}, missing(FieldPrice, PriceSelector)
	}
	price, err := ParsePrice(priceSel.Text())
	if err != nil {
		return types.Product{}, fieldErr(FieldPrice, err)
	}

	reviewsSel := doc.Find(ReviewsSelector).First()
	if reviewsSel.Length() == 0 {
		return types.Product{}, missing(FieldReviews, ReviewsSelector)
	}
	reviews, err := ParseReviewCount(reviewsSel.Text())
	if err != nil {
		return types.Product{}, fieldErr(FieldReviews, err)
	}

	p := types.Product{
		Title:        titleText,
		Description:  collapse(desc.Text()),
		Price:        price,
		Rating:       doc.Find(StarSelector).Length(),
		NumOfReviews: reviews,
	}
	e.logger.Debug("card extracted", "title", p.Title, "price", p.Price, "rating", p.Rating)
	return p, nil
}

// Cards implements Extractor.
func (e *CSSExtractor) Cards(pageHTML, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var cards []string
	var outerErr error
	doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		html, err := goquery.OuterHtml(sel)
		if err != nil {
			outerErr = fmt.Errorf("render card %d: %w", i, err)
			return false
		}
		cards = append(cards, html)
		return true
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return cards, nil
}
