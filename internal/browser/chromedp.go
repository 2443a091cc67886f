package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/types"
)

// ChromedpSession implements Session on top of chromedp.
type ChromedpSession struct {
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	cfg           config.BrowserConfig
	logger        *slog.Logger
	once          sync.Once
}

// NewChromedpSession starts a browser through chromedp's exec allocator.
func NewChromedpSession(cfg config.BrowserConfig, logger *slog.Logger) (*ChromedpSession, error) {
	logger = logger.With("component", "chromedp_session")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Bin))
	}
	if cfg.WindowSize != "" {
		opts = append(opts, chromedp.Flag("window-size", cfg.WindowSize))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run on a fresh context starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Debug("browser session ready", "headless", cfg.Headless)
	return &ChromedpSession{
		browserCtx:    browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		cfg:           cfg,
		logger:        logger,
	}, nil
}

func (s *ChromedpSession) Driver() string { return "chromedp" }

// NewPage opens a new tab in the running browser.
func (s *ChromedpSession) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	p := &chromedpPage{tabCtx: tabCtx, cancel: cancel, navTimeout: s.cfg.NavigateTimeout}
	if err := p.run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return p, nil
}

// Close cancels the browser and allocator contexts, killing Chrome.
func (s *ChromedpSession) Close() error {
	s.once.Do(func() {
		s.browserCancel()
		s.allocCancel()
		s.logger.Debug("browser session closed")
	})
	return nil
}

type chromedpPage struct {
	tabCtx     context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
}

// run executes actions on the tab while honouring ctx's deadline and cancellation.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	if err := p.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	return nil
}

// findLinkJS returns a JS expression locating the first <a> whose trimmed text equals text.
func findLinkJS(text string) string {
	quoted, _ := json.Marshal(text)
	return fmt.Sprintf(`Array.from(document.querySelectorAll('a')).find(a => (a.innerText || a.textContent).trim() === %s)`, quoted)
}

func (p *chromedpPage) MoreControl(ctx context.Context, linkText string) (Control, error) {
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(`!!(%s)`, findLinkJS(linkText)), &found)); err != nil {
		return nil, fmt.Errorf("look up %q link: %w", linkText, err)
	}
	if !found {
		return nil, types.ErrNoControl
	}
	return &chromedpControl{page: p, text: linkText}, nil
}

func (p *chromedpPage) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return p.run(ctx,
		chromedp.Sleep(d),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromedpPage) Cards(ctx context.Context, selector string) ([]string, error) {
	quoted, _ := json.Marshal(selector)
	var cards []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.outerHTML)`, quoted)
	if err := p.run(ctx, chromedp.Evaluate(js, &cards)); err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return cards, nil
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromedpPage) Close() error {
	p.cancel()
	return nil
}

// chromedpControl re-locates the link on every call; chromedp has no
// long-lived element handles outside of a Run.
type chromedpControl struct {
	page *chromedpPage
	text string
}

func (c *chromedpControl) Click(ctx context.Context) error {
	var clicked bool
	js := fmt.Sprintf(`(() => { const a = %s; if (!a) return false; a.click(); return true; })()`, findLinkJS(c.text))
	if err := c.page.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return types.ErrNoControl
	}
	return nil
}

func (c *chromedpControl) Style(ctx context.Context) (string, error) {
	var style string
	js := fmt.Sprintf(`(() => { const a = %s; return a ? (a.getAttribute('style') || '') : ''; })()`, findLinkJS(c.text))
	if err := c.page.run(ctx, chromedp.Evaluate(js, &style)); err != nil {
		return "", err
	}
	return style, nil
}
