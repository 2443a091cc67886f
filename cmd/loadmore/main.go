package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/loadmore/internal/browser"
	"github.com/IshaanNene/loadmore/internal/catalog"
	"github.com/IshaanNene/loadmore/internal/config"
	"github.com/IshaanNene/loadmore/internal/engine"
	"github.com/IshaanNene/loadmore/internal/extractor"
	"github.com/IshaanNene/loadmore/internal/logging"
	"github.com/IshaanNene/loadmore/internal/observability"
	"github.com/IshaanNene/loadmore/internal/storage"
	"github.com/IshaanNene/loadmore/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	outputDir   string
	driver      string
	engineName  string
	onError     string
	headless    bool
	snapshotDir string
	storeTypes  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.New(logging.NewConsoleHandler(os.Stderr, nil)).Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loadmore",
		Short: "Scrape \"load more\" product listings into CSV",
		Long: `loadmore drives a headless browser through the webscraper.io e-commerce
test shop, clicks "More" until every product card is loaded and writes one
CSV per category (home, computers, laptops, tablets, phones, touch).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScrape,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file path")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&outputDir, "output", "o", "", "directory CSV files are written to")
	flags.StringVar(&engineName, "engine", "", "extraction engine: css, xpath")
	flags.StringVar(&onError, "on-error", "", "malformed card policy: abort, skip")
	flags.StringVar(&snapshotDir, "snapshot-dir", "", "directory for compressed page snapshots")
	flags.StringVar(&storeTypes, "store", "", "comma-separated storage backends: csv, mongodb")

	rootCmd.Flags().StringVar(&driver, "driver", "", "browser driver: rod, chromedp")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")

	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd
}

// loadConfig reads, overrides and validates configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runScrape executes the full scrape: expand, extract and store every category.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, verbose)

	sources, err := catalog.Build(cfg.Catalog.BaseURL, cfg.Catalog.Entries)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	ex, err := extractor.New(cfg.Extract.Engine, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := startMetrics(cfg, logger)
	defer shutdownMetrics(metrics, logger)

	var opts []engine.Option
	opts = append(opts, engine.WithMetrics(metrics))
	if cfg.Storage.SnapshotDir != "" {
		snaps, err := storage.NewSnapshotStore(cfg.Storage.SnapshotDir, logger)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithSnapshots(snaps))
	}

	session, err := browser.Open(cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("browser close error", "error", err)
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	logger.Debug("starting scrape",
		"driver", session.Driver(),
		"categories", len(sources),
		"engine", ex.Name(),
		"output", cfg.Storage.OutputDir,
	)

	start := time.Now()
	eng := engine.New(page, ex, cfg, logger, opts...)
	results, err := eng.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	if err := store(ctx, cfg, results, logger); err != nil {
		return err
	}

	stats := eng.Stats().Snapshot()
	logger.Debug("scrape complete",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"categories", stats["categories"],
		"products", stats["extracted"],
		"skipped", stats["skipped"],
		"clicks", stats["clicks"],
	)
	return nil
}

// replayCmd creates the "replay" subcommand.
func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild CSV files from saved page snapshots",
		Long:  "Re-run extraction over the snapshots written by an earlier scrape with --snapshot-dir, without launching a browser.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.SnapshotDir == "" {
				return fmt.Errorf("replay needs storage.snapshot_dir or --snapshot-dir")
			}
			logger := logging.New(cfg.Logging, verbose)

			sources, err := catalog.Build(cfg.Catalog.BaseURL, cfg.Catalog.Entries)
			if err != nil {
				return fmt.Errorf("build catalog: %w", err)
			}
			ex, err := extractor.New(cfg.Extract.Engine, logger)
			if err != nil {
				return err
			}
			snaps, err := storage.NewSnapshotStore(cfg.Storage.SnapshotDir, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := engine.Replay(ctx, sources, snaps, ex, cfg.Extract, logger, nil)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			return store(ctx, cfg, results, logger)
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loadmore %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sources, err := catalog.Build(cfg.Catalog.BaseURL, cfg.Catalog.Entries)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog:\n")
			for _, src := range sources {
				fmt.Fprintf(out, "  %-16s %s\n", src.Name, src.URL)
			}
			fmt.Fprintf(out, "\nBrowser:\n")
			fmt.Fprintf(out, "  Driver:            %s\n", cfg.Browser.Driver)
			fmt.Fprintf(out, "  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Fprintf(out, "  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Fprintf(out, "  Navigate Timeout:  %s\n", cfg.Browser.NavigateTimeout)
			fmt.Fprintf(out, "\nExpand:\n")
			fmt.Fprintf(out, "  Link Text:         %s\n", cfg.Expand.LinkText)
			fmt.Fprintf(out, "  Max Clicks:        %d\n", cfg.Expand.MaxClicks)
			fmt.Fprintf(out, "  Timeout:           %s\n", cfg.Expand.Timeout)
			fmt.Fprintf(out, "  Settle:            %s\n", cfg.Expand.Settle)
			fmt.Fprintf(out, "  Click Rate:        %g/s\n", cfg.Expand.ClickRate)
			fmt.Fprintf(out, "\nExtract:\n")
			fmt.Fprintf(out, "  Engine:            %s\n", cfg.Extract.Engine)
			fmt.Fprintf(out, "  Card Selector:     %s\n", cfg.Extract.CardSelector)
			fmt.Fprintf(out, "  On Error:          %s\n", cfg.Extract.OnError)
			fmt.Fprintf(out, "\nStorage:\n")
			fmt.Fprintf(out, "  Types:             %s\n", strings.Join(cfg.Storage.Types, ", "))
			fmt.Fprintf(out, "  Output Dir:        %s\n", cfg.Storage.OutputDir)
			fmt.Fprintf(out, "  Snapshot Dir:      %s\n", cfg.Storage.SnapshotDir)
			fmt.Fprintf(out, "\nMetrics:\n")
			fmt.Fprintf(out, "  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Fprintf(out, "  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// store writes every result through the configured backends.
func store(ctx context.Context, cfg *config.Config, results []types.CategoryResult, logger *slog.Logger) error {
	s, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	if err := storage.StoreAll(ctx, s, results); err != nil {
		s.Close()
		return fmt.Errorf("store: %w", err)
	}
	return s.Close()
}

func startMetrics(cfg *config.Config, logger *slog.Logger) *observability.Metrics {
	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}
	return metrics
}

func shutdownMetrics(m *observability.Metrics, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if engineName != "" {
		cfg.Extract.Engine = strings.ToLower(engineName)
	}
	if onError != "" {
		cfg.Extract.OnError = strings.ToLower(onError)
	}
	if snapshotDir != "" {
		cfg.Storage.SnapshotDir = snapshotDir
	}
	if storeTypes != "" {
		var backends []string
		for _, t := range strings.Split(storeTypes, ",") {
			if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
				backends = append(backends, t)
			}
		}
		cfg.Storage.Types = backends
	}
	if driver != "" {
		cfg.Browser.Driver = strings.ToLower(driver)
	}
	if f := cmd.Flags().Lookup("headless"); f != nil && f.Changed {
		cfg.Browser.Headless = headless
	}
}
