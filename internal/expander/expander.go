// Package expander loads every product of a category page by clicking its
// "more" link until the link disappears or is hidden.
package expander

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/loadmore/internal/browser"
	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/types"
)

// Expander drives the "more" click loop on a page.
type Expander struct {
	cfg     config.ExpandConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	onClick func()
}

// Option configures the Expander.
type Option func(*Expander)

// WithClickHook registers a callback run after every successful click.
func WithClickHook(fn func()) Option {
	return func(e *Expander) { e.onClick = fn }
}

// New creates an Expander. A ClickRate of 0 disables pacing.
func New(cfg config.ExpandConfig, logger *slog.Logger, opts ...Option) *Expander {
	limit := rate.Inf
	if cfg.ClickRate > 0 {
		limit = rate.Limit(cfg.ClickRate)
	}
	e := &Expander{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "expander"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand navigates page to url and clicks the "more" link until every card
// is loaded. It returns the number of clicks performed.
//
// The link is looked up again after every click, so a replaced DOM node
// is followed instead of clicking a stale handle. The loop stops when the
// link is gone or carries a non-empty inline style.
func (e *Expander) Expand(ctx context.Context, page browser.Page, url string) (int, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := page.Settle(ctx, e.cfg.Settle); err != nil {
		return 0, e.wrap(ctx, url, 0, fmt.Errorf("settle: %w", err))
	}

	ctrl, err := page.MoreControl(ctx, e.cfg.LinkText)
	if errors.Is(err, types.ErrNoControl) {
		e.logger.Debug("no more control", "url", url)
		return 0, nil
	}
	if err != nil {
		return 0, e.wrap(ctx, url, 0, err)
	}

	clicks := 0
	for clicks < e.cfg.MaxClicks {
		if err := e.limiter.Wait(ctx); err != nil {
			// Wait fails early when the next token lies past the deadline.
			if ctx.Err() == nil {
				err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
			}
			return clicks, e.wrap(ctx, url, clicks, err)
		}
		if err := ctrl.Click(ctx); err != nil {
			if errors.Is(err, types.ErrNoControl) {
				return clicks, nil
			}
			return clicks, e.wrap(ctx, url, clicks, fmt.Errorf("click: %w", err))
		}
		clicks++
		if e.onClick != nil {
			e.onClick()
		}

		if err := page.Settle(ctx, e.cfg.Settle); err != nil {
			return clicks, e.wrap(ctx, url, clicks, fmt.Errorf("settle: %w", err))
		}

		ctrl, err = page.MoreControl(ctx, e.cfg.LinkText)
		if errors.Is(err, types.ErrNoControl) {
			return clicks, nil
		}
		if err != nil {
			return clicks, e.wrap(ctx, url, clicks, err)
		}

		style, err := ctrl.Style(ctx)
		if err != nil {
			return clicks, e.wrap(ctx, url, clicks, fmt.Errorf("read style: %w", err))
		}
		if style != "" {
			e.logger.Debug("more control hidden", "url", url, "clicks", clicks, "style", style)
			return clicks, nil
		}
	}

	return clicks, &types.ExpandError{URL: url, Clicks: clicks, Err: types.ErrMaxClicks}
}

// wrap turns loop failures into an ExpandError, tagging deadline overruns
// of the expansion budget as ErrExpandTimeout.
func (e *Expander) wrap(ctx context.Context, url string, clicks int, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", types.ErrExpandTimeout, e.cfg.Timeout.Round(time.Millisecond), err)
	}
	return &types.ExpandError{URL: url, Clicks: clicks, Err: err}
}
