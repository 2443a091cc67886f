// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/loadmore/internal/browser"
	"github.com/IshaanNene/loadmore/internal/types"
)

// ErrStaleControl is returned when a control handle from before a DOM
// replacement is used.
var ErrStaleControl = errors.New("stale element reference")

// Shop describes one category page served by Page.
type Shop struct {
	// Cards is the full product set in page order.
	Cards []string
	// PageSize is how many cards each load shows. Zero shows all at once
	// and omits the more control.
	PageSize int
	// RemoveControl drops the link from the DOM instead of hiding it with
	// an inline style once everything is loaded.
	RemoveControl bool
	// ReplaceControl swaps the link for a new node after every click.
	ReplaceControl bool
	// NeverHide keeps the link visible forever.
	NeverHide bool
	// ClickDelay makes each click block for the given duration.
	ClickDelay time.Duration
	// NavigateErr fails navigation to this page.
	NavigateErr error
}

// Page is a fake browser.Page serving a set of Shops by URL.
type Page struct {
	mu      sync.Mutex
	shops   map[string]*Shop
	current *Shop
	url     string
	shown   int
	gen     int

	Navigations []string
	Clicks      int
	Closed      bool
}

var _ browser.Page = (*Page)(nil)

// NewPage creates a fake page serving shops keyed by URL.
func NewPage(shops map[string]*Shop) *Page {
	return &Page{shops: shops}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Navigations = append(p.Navigations, url)
	shop, ok := p.shops[url]
	if !ok {
		return &types.NavigationError{URL: url, Err: fmt.Errorf("404 not found")}
	}
	if shop.NavigateErr != nil {
		return &types.NavigationError{URL: url, Err: shop.NavigateErr}
	}
	p.current = shop
	p.url = url
	p.gen++
	p.shown = len(shop.Cards)
	if shop.PageSize > 0 && shop.PageSize < len(shop.Cards) {
		p.shown = shop.PageSize
	}
	return nil
}

func (p *Page) MoreControl(ctx context.Context, linkText string) (browser.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || linkText != "More" || p.current.PageSize == 0 {
		return nil, types.ErrNoControl
	}
	if p.allShown() && p.current.RemoveControl {
		return nil, types.ErrNoControl
	}
	return &control{page: p, gen: p.gen}, nil
}

func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func (p *Page) Cards(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}
	return append([]string(nil), p.current.Cards[:p.shown]...), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	cards, err := p.Cards(ctx, "")
	if err != nil {
		return "", err
	}
	return "<html><body>" + strings.Join(cards, "\n") + "</body></html>", nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

func (p *Page) allShown() bool {
	return p.shown >= len(p.current.Cards) && !p.current.NeverHide
}

type control struct {
	page *Page
	gen  int
}

func (c *control) Click(ctx context.Context) error {
	p := c.page
	p.mu.Lock()
	delay := p.current.ClickDelay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c.gen != p.gen {
		return ErrStaleControl
	}
	p.Clicks++
	p.shown += p.current.PageSize
	if p.shown > len(p.current.Cards) {
		p.shown = len(p.current.Cards)
	}
	if p.current.ReplaceControl {
		p.gen++
	}
	return nil
}

func (c *control) Style(ctx context.Context) (string, error) {
	p := c.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.gen != p.gen {
		return "", ErrStaleControl
	}
	if p.allShown() {
		return "display: none;", nil
	}
	return "", nil
}

// Session is a fake browser.Session handing out one Page.
type Session struct {
	Page   *Page
	Closed bool
}

var _ browser.Session = (*Session)(nil)

func (s *Session) NewPage(ctx context.Context) (browser.Page, error) { return s.Page, nil }

func (s *Session) Close() error {
	s.Closed = true
	return nil
}

func (s *Session) Driver() string { return "fake" }
