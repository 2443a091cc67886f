package types

import (
	"strconv"
	"strings"
)

// Product is a single scraped product card.
type Product struct {
	Title        string  `json:"title"          bson:"title"`
	Description  string  `json:"description"    bson:"description"`
	Price        float64 `json:"price"          bson:"price"`
	Rating       int     `json:"rating"         bson:"rating"`
	NumOfReviews int     `json:"num_of_reviews" bson:"num_of_reviews"`
}

// productHeader is the column order of every exported record.
var productHeader = []string{"title", "description", "price", "rating", "num_of_reviews"}

// Header returns the field names in declaration order.
func (Product) Header() []string {
	return append([]string(nil), productHeader...)
}

// Record returns the product as a row of strings matching Header.
func (p Product) Record() []string {
	return []string{
		p.Title,
		p.Description,
		formatPrice(p.Price),
		strconv.Itoa(p.Rating),
		strconv.Itoa(p.NumOfReviews),
	}
}

// formatPrice writes the shortest decimal form of v, keeping a ".0" on
// whole amounts so 299 is written as 299.0.
func formatPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Source pairs an output file name with the page it is scraped from.
type Source struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url"  yaml:"url"`
}

// Category returns the output name without its extension ("home.csv" -> "home").
func (s Source) Category() string {
	if i := strings.LastIndexByte(s.Name, '.'); i > 0 {
		return s.Name[:i]
	}
	return s.Name
}

// CardResult is the outcome of extracting one card.
// Exactly one of Product (when Err is nil) or Err is meaningful.
type CardResult struct {
	Index   int
	Product Product
	Err     error
}

// OK reports whether the card was extracted successfully.
func (r CardResult) OK() bool { return r.Err == nil }

// CategoryResult holds everything scraped for one source.
type CategoryResult struct {
	Source   Source
	Products []Product
	Clicks   int
	Skipped  int
}
