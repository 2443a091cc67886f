// Package catalog builds the ordered list of category pages to scrape.
package catalog

import (
	"fmt"
	"net/url"

	"github.com/IshaanNene/loadmore/internal/types"
)

// DefaultBaseURL is the root of the "load more" demo shop.
const DefaultBaseURL = "https://webscraper.io/test-sites/e-commerce/more/"

// Entry is an output name with a path relative to the base URL.
type Entry struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultEntries lists the six shop categories in scrape order.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "home.csv", Path: ""},
		{Name: "computers.csv", Path: "computers/"},
		{Name: "laptops.csv", Path: "computers/laptops"},
		{Name: "tablets.csv", Path: "computers/tablets"},
		{Name: "phones.csv", Path: "phones/"},
		{Name: "touch.csv", Path: "phones/touch"},
	}
}

// Build resolves every entry against base and returns the sources in order.
func Build(base string, entries []Entry) ([]types.Source, error) {
	if len(entries) == 0 {
		return nil, types.ErrEmptyCatalog
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", base, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", baseURL.Scheme)
	}

	seen := make(map[string]bool, len(entries))
	sources := make([]types.Source, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry for path %q has no name", e.Path)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.Name)
		}
		seen[e.Name] = true

		ref, err := url.Parse(e.Path)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %w", e.Path, err)
		}
		sources = append(sources, types.Source{
			Name: e.Name,
			URL:  baseURL.ResolveReference(ref).String(),
		})
	}

	return sources, nil
}

// Default returns the six built-in sources.
func Default() []types.Source {
	sources, err := Build(DefaultBaseURL, DefaultEntries())
	if err != nil {
		panic(err)
	}
	return sources
}
