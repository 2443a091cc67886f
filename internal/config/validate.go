package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Catalog.BaseURL); err != nil {
		return fmt.Errorf("catalog.base_url: %w", err)
	}
	if len(cfg.Catalog.Entries) == 0 {
		return fmt.Errorf("catalog.entries must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Catalog.Entries))
	for _, e := range cfg.Catalog.Entries {
		if e.Name == "" {
			return fmt.Errorf("catalog entry with path %q has no name", e.Path)
		}
		if strings.ContainsAny(e.Name, `/\`) {
			return fmt.Errorf("catalog entry name %q must be a bare file name", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate catalog entry %q", e.Name)
		}
		seen[e.Name] = true
	}

	switch cfg.Browser.Driver {
	case "rod", "chromedp":
	default:
		return fmt.Errorf("browser.driver must be 'rod' or 'chromedp', got %q", cfg.Browser.Driver)
	}
	if cfg.Browser.Stealth && cfg.Browser.Driver != "rod" {
		return fmt.Errorf("browser.stealth is only supported with the rod driver")
	}
	if cfg.Browser.NavigateTimeout <= 0 {
		return fmt.Errorf("browser.navigate_timeout must be > 0")
	}

	if cfg.Expand.LinkText == "" {
		return fmt.Errorf("expand.link_text must not be empty")
	}
	if cfg.Expand.MaxClicks < 1 {
		return fmt.Errorf("expand.max_clicks must be >= 1, got %d", cfg.Expand.MaxClicks)
	}
	if cfg.Expand.Timeout <= 0 {
		return fmt.Errorf("expand.timeout must be > 0")
	}
	if cfg.Expand.Settle < 0 {
		return fmt.Errorf("expand.settle must be >= 0")
	}
	if cfg.Expand.ClickRate < 0 {
		return fmt.Errorf("expand.click_rate must be >= 0, got %g", cfg.Expand.ClickRate)
	}

	if cfg.Extract.Engine != "css" && cfg.Extract.Engine != "xpath" {
		return fmt.Errorf("extract.engine must be 'css' or 'xpath', got %q", cfg.Extract.Engine)
	}
	if cfg.Extract.CardSelector == "" {
		return fmt.Errorf("extract.card_selector must not be empty")
	}
	if cfg.Extract.OnError != "abort" && cfg.Extract.OnError != "skip" {
		return fmt.Errorf("extract.on_error must be 'abort' or 'skip', got %q", cfg.Extract.OnError)
	}

	if len(cfg.Storage.Types) == 0 {
		return fmt.Errorf("storage.types must not be empty")
	}
	validStorageTypes := map[string]bool{
		"csv": true, "mongodb": true,
	}
	for _, st := range cfg.Storage.Types {
		if !validStorageTypes[st] {
			return fmt.Errorf("storage type %q is not supported (valid: csv, mongodb)", st)
		}
		if st == "mongodb" && cfg.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongodb storage")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "console", "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'console', 'text' or 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		return fmt.Errorf("logging.output must be 'stdout' or 'stderr', got %q", cfg.Logging.Output)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for navigation.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
