package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/loadmore/internal/types"
)

// XPathExtractor extracts card fields using XPath expressions.
type XPathExtractor struct {
	logger *slog.Logger

	title       string
	description string
	price       string
	star        string
	reviews     string
}

// NewXPathExtractor creates a new XPath extractor.
func NewXPathExtractor(logger *slog.Logger) *XPathExtractor {
	return &XPathExtractor{
		logger:      logger.With("component", "xpath_extractor"),
		title:       mustClassXPath(TitleSelector),
		description: mustClassXPath(DescriptionSelector),
		price:       mustClassXPath(PriceSelector),
		star:        mustClassXPath(StarSelector),
		reviews:     mustClassXPath(ReviewsSelector),
	}
}

func (e *XPathExtractor) Name() string { return "xpath" }

// Extract implements Extractor.
func (e *XPathExtractor) Extract(cardHTML string) (types.Product, error) {
	doc, err := htmlquery.Parse(strings.NewReader(cardHTML))
	if err != nil {
		return types.Product{}, fieldErr(FieldCard, err)
	}

	title, err := e.first(doc, e.title, FieldTitle, TitleSelector)
	if err != nil {
		return types.Product{}, err
	}
	titleText, ok := attr(title, "title")
	if !ok {
		return types.Product{}, fieldErr(FieldTitle, fmt.Errorf("%w: title", types.ErrMissingAttribute))
	}

	desc, err := e.first(doc, e.description, FieldDescription, DescriptionSelector)
	if err != nil {
		return types.Product{}, err
	}

	priceNode, err := e.first(doc, e.price, FieldPrice, PriceSelector)
	if err != nil {
		return types.Product{}, err
	}
	price, err := ParsePrice(htmlquery.InnerText(priceNode))
	if err != nil {
		return types.Product{}, fieldErr(FieldPrice, err)
	}

	reviewsNode, err := e.first(doc, e.reviews, FieldReviews, ReviewsSelector)
	if err != nil {
		return types.Product{}, err
	}
	reviews, err := ParseReviewCount(htmlquery.InnerText(reviewsNode))
	if err != nil {
		return types.Product{}, fieldErr(FieldReviews, err)
	}

	stars, err := htmlquery.QueryAll(doc, e.star)
	if err != nil {
		return types.Product{}, fieldErr(FieldRating, err)
	}

	return types.Product{
		Title:        titleText,
		Description:  collapse(htmlquery.InnerText(desc)),
		Price:        price,
		Rating:       len(stars),
		NumOfReviews: reviews,
	}, nil
}

// Cards implements Extractor. selector may be a raw XPath or a compound class selector.
func (e *XPathExtractor) Cards(pageHTML, selector string) ([]string, error) {
	expr := selector
	if !strings.HasPrefix(selector, "/") {
		var err error
		expr, err = ClassXPath(selector)
		if err != nil {
			return nil, err
		}
	}

	doc, err := htmlquery.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		e.logger.Warn("invalid xpath", "selector", expr, "error", err)
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}

	cards := make([]string, 0, len(nodes))
	for _, n := range nodes {
		cards = append(cards, htmlquery.OutputHTML(n, true))
	}
	return cards, nil
}

func (e *XPathExtractor) first(doc *html.Node, expr, field, selector string) (*html.Node, error) {
	n, err := htmlquery.Query(doc, expr)
	if err != nil {
		return nil, fieldErr(field, err)
	}
	if n == nil {
		return nil, missing(field, selector)
	}
	return n, nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

var compoundSelector = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*)?((?:\.[a-zA-Z_-][a-zA-Z0-9_-]*)+)$`)

// ClassXPath translates a compound selector such as "div.card.thumbnail"
// into an equivalent descendant XPath expression.
func ClassXPath(selector string) (string, error) {
	m := compoundSelector.FindStringSubmatch(strings.TrimSpace(selector))
	if m == nil {
		return "", fmt.Errorf("selector %q is not a compound class selector", selector)
	}

	tag := m[1]
	if tag == "" {
		tag = "*"
	}
	classes := strings.Split(strings.TrimPrefix(m[2], "."), ".")
	preds := make([]string, len(classes))
	for i, c := range classes {
		preds[i] = fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", c)
	}
	return fmt.Sprintf("//%s[%s]", tag, strings.Join(preds, " and ")), nil
}

func mustClassXPath(selector string) string {
	expr, err := ClassXPath(selector)
	if err != nil {
		panic(err)
	}
	return expr
}
