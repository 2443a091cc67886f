package browser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/types"
)

// RodSession implements Session using a Chromium instance driven by Rod.
type RodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	logger   *slog.Logger
	once     sync.Once
	closeErr error
}

// NewRodSession launches Chromium and connects to it.
func NewRodSession(cfg config.BrowserConfig, logger *slog.Logger) (*RodSession, error) {
	s := &RodSession{
		cfg:    cfg,
		logger: logger.With("component", "rod_session"),
	}

	launchURL, err := s.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		s.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = browser

	s.logger.Debug("browser session ready",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
	)
	return s, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (s *RodSession) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(s.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-popup-blocking").
		Set("disable-notifications")

	if s.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	if s.cfg.WindowSize != "" {
		l = l.Set("window-size", s.cfg.WindowSize)
	}
	if s.cfg.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}

	s.launcher = l
	return l.Launch()
}

func (s *RodSession) Driver() string { return "rod" }

// NewPage opens a tab, applying stealth patches when configured.
func (s *RodSession) NewPage(ctx context.Context) (Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if s.cfg.Stealth {
		page, err = stealth.Page(s.browser)
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &rodPage{
		page:       page.Context(ctx),
		navTimeout: s.cfg.NavigateTimeout,
		logger:     s.logger,
	}, nil
}

// Close shuts down the browser and releases resources.
func (s *RodSession) Close() error {
	s.once.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.logger.Debug("browser session closed")
	})
	return s.closeErr
}

type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     *slog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	defer pg.CancelTimeout()
	if err := pg.Navigate(url); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	if err := pg.WaitLoad(); err != nil {
		return &types.NavigationError{URL: url, Err: fmt.Errorf("wait load: %w", err)}
	}
	return nil
}

func (p *rodPage) MoreControl(ctx context.Context, linkText string) (Control, error) {
	has, el, err := p.page.Context(ctx).HasR("a", linkTextRegex(linkText))
	if err != nil {
		return nil, fmt.Errorf("look up %q link: %w", linkText, err)
	}
	if !has {
		return nil, types.ErrNoControl
	}
	return &rodControl{el: el}, nil
}

func (p *rodPage) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return p.page.Context(ctx).WaitStable(d)
}

func (p *rodPage) Cards(ctx context.Context, selector string) ([]string, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	cards := make([]string, 0, len(els))
	for i, el := range els {
		html, err := el.HTML()
		if err != nil {
			return nil, fmt.Errorf("card %d html: %w", i, err)
		}
		cards = append(cards, html)
	}
	return cards, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodControl struct {
	el *rod.Element
}

func (c *rodControl) Click(ctx context.Context) error {
	_, err := c.el.Context(ctx).Eval(`() => this.click()`)
	return err
}

func (c *rodControl) Style(ctx context.Context) (string, error) {
	style, err := c.el.Context(ctx).Attribute("style")
	if err != nil {
		return "", err
	}
	if style == nil {
		return "", nil
	}
	return *style, nil
}

// linkTextRegex matches an element whose whole visible text is text.
func linkTextRegex(text string) string {
	return `/^\s*` + regexp.QuoteMeta(text) + `\s*$/`
}
