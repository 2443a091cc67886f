// Package browser wraps the browser automation drivers behind the small
// capability set the scraper needs.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/loadmore/internal/config"
)

// Session owns one running browser for the whole scrape.
type Session interface {
	// NewPage opens a blank tab.
	NewPage(ctx context.Context) (Page, error)

	// Close shuts the browser down. Safe to call more than once.
	Close() error

	// Driver returns the driver identifier.
	Driver() string
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// MoreControl looks up a link by its visible text. It never waits:
	// a missing link returns types.ErrNoControl immediately.
	MoreControl(ctx context.Context, linkText string) (Control, error)

	// Settle waits until the page has stopped changing for d.
	Settle(ctx context.Context, d time.Duration) error

	// Cards returns the outer HTML of every element matching selector.
	Cards(ctx context.Context, selector string) ([]string, error)

	// HTML returns the current document HTML.
	HTML(ctx context.Context) (string, error)

	// Close closes the tab.
	Close() error
}

// Control is a handle to the "more" link found by MoreControl.
type Control interface {
	// Click triggers a script-level click on the element.
	Click(ctx context.Context) error

	// Style returns the inline style attribute, or "" when unset.
	Style(ctx context.Context) (string, error)
}

// Open launches the browser configured in cfg.
func Open(cfg config.BrowserConfig, logger *slog.Logger) (Session, error) {
	switch cfg.Driver {
	case "", "rod":
		return NewRodSession(cfg, logger)
	case "chromedp":
		return NewChromedpSession(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported browser driver: %s", cfg.Driver)
	}
}
