package config

import (
	"time"

	"github.com/IshaanNene/loadmore/internal/catalog"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for loadmore.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Expand  ExpandConfig  `mapstructure:"expand"  yaml:"expand"`
	Extract ExtractConfig `mapstructure:"extract" yaml:"extract"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CatalogConfig lists the category pages to scrape.
type CatalogConfig struct {
	BaseURL string          `mapstructure:"base_url" yaml:"base_url"`
	Entries []catalog.Entry `mapstructure:"entries"  yaml:"entries"`
}

// BrowserConfig controls the browser session.
type BrowserConfig struct {
	Driver          string        `mapstructure:"driver"           yaml:"driver"` // rod, chromedp
	Headless        bool          `mapstructure:"headless"         yaml:"headless"`
	Bin             string        `mapstructure:"bin"              yaml:"bin"`
	Stealth         bool          `mapstructure:"stealth"          yaml:"stealth"`
	NoSandbox       bool          `mapstructure:"no_sandbox"       yaml:"no_sandbox"`
	WindowSize      string        `mapstructure:"window_size"      yaml:"window_size"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout" yaml:"navigate_timeout"`
}

// ExpandConfig controls the "more" click loop.
type ExpandConfig struct {
	LinkText  string        `mapstructure:"link_text"  yaml:"link_text"`
	MaxClicks int           `mapstructure:"max_clicks" yaml:"max_clicks"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	Settle    time.Duration `mapstructure:"settle"     yaml:"settle"`
	ClickRate float64       `mapstructure:"click_rate" yaml:"click_rate"` // clicks per second, 0 = unlimited
}

// ExtractConfig controls card extraction.
type ExtractConfig struct {
	Engine       string `mapstructure:"engine"        yaml:"engine"` // css, xpath
	CardSelector string `mapstructure:"card_selector" yaml:"card_selector"`
	OnError      string `mapstructure:"on_error"      yaml:"on_error"` // abort, skip
}

// StorageConfig controls output.
type StorageConfig struct {
	Types       []string    `mapstructure:"types"        yaml:"types"` // csv, mongodb
	OutputDir   string      `mapstructure:"output_dir"   yaml:"output_dir"`
	SnapshotDir string      `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	Mongo       MongoConfig `mapstructure:"mongo"        yaml:"mongo"`
}

// MongoConfig configures the optional MongoDB sink.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console, text, json
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL: catalog.DefaultBaseURL,
			Entries: catalog.DefaultEntries(),
		},
		Browser: BrowserConfig{
			Driver:          "rod",
			Headless:        true,
			NoSandbox:       true,
			WindowSize:      "1920,1080",
			NavigateTimeout: 30 * time.Second,
		},
		Expand: ExpandConfig{
			LinkText:  "More",
			MaxClicks: 100,
			Timeout:   2 * time.Minute,
			Settle:    300 * time.Millisecond,
			ClickRate: 4,
		},
		Extract: ExtractConfig{
			Engine:       "css",
			CardSelector: ".card.thumbnail",
			OnError:      "abort",
		},
		Storage: StorageConfig{
			Types:     []string{"csv"},
			OutputDir: ".",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "loadmore",
				Collection: "products",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
