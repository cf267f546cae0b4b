package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/adapters/logging"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/config"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/catalog"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/directory"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/scoring"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/ports"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/ratelimit"
)

// defaultConfigFile is picked up from the working directory when --config is
// not given.
const defaultConfigFile = "wpdirfilter.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wpdirfilter",
	Short: "Plugin directory search with quality filters",
	Long: `wpdirfilter searches the WordPress plugin directory and enriches results
with computed usability and health scores.

It serves an HTTP API, answers one-off queries from the command line, and
maintains the local cache that backs both.`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: wpdirfilter.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the named config file, falling back to wpdirfilter.yaml
// in the working directory, then to built-in defaults.
func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	return config.Load(path)
}

// buildLogger constructs the console logger per config. --verbose forces
// debug level.
func buildLogger(cfg config.Config) *logging.ConsoleLogger {
	level := ports.ParseLevel(cfg.Log.Level)
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(
		logging.WithLevel(level),
		logging.WithJSONFormat(cfg.Log.Format == config.LogFormatJSON),
	)
}

// buildStack wires the cache, catalog client, scoring engine and
// orchestrator from config. The limiter is only attached when asked for and
// enabled; it is nil otherwise. Callers own closing the returned cache.
func buildStack(cfg config.Config, withLimiter bool) (*directory.Service, *cache.TieredCache, *ratelimit.Limiter, error) {
	store, err := cache.New(cache.Config{
		Path:                 cfg.Cache.Path,
		FastTierEnabled:      cfg.Cache.FastTierEnabled,
		FastTierCap:          cfg.Cache.FastTierCap.Std(),
		CompressionThreshold: cfg.Cache.CompressionThreshold,
		StatsWindow:          cfg.Cache.StatsWindow.Std(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	client := catalog.NewClient(catalog.ClientConfig{
		BaseURL:   cfg.Catalog.BaseURL,
		Timeout:   cfg.Catalog.Timeout.Std(),
		UserAgent: cfg.Catalog.UserAgent,
	})

	engine := scoring.NewEngine(cfg.Scoring.Weights,
		scoring.WithPlatformVersion(cfg.Scoring.PlatformVersion))

	svcCfg := directory.DefaultServiceConfig()
	svcCfg.MetadataTTL = cfg.Cache.MetadataTTL.Std()
	svcCfg.ScoresTTL = cfg.Cache.ScoresTTL.Std()
	svcCfg.SearchTTL = cfg.Cache.SearchTTL.Std()

	opts := []directory.ServiceOption{directory.WithServiceConfig(svcCfg)}

	var limiter *ratelimit.Limiter
	if withLimiter && cfg.RateLimit.Enabled {
		limiter = ratelimit.New(store, ratelimit.Config{
			Enabled:  true,
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window.Std(),
		})
		opts = append(opts, directory.WithRateLimiter(limiter))
	}

	svc := directory.NewService(client, store, engine, opts...)
	return svc, store, limiter, nil
}
