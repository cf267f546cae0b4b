// Package config loads and validates the service configuration from YAML.
// Absent keys keep their defaults, so a partial file is always safe.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/scoring"
)

// Configuration errors.
var (
	ErrNotFound = errors.New("config file not found")
	ErrInvalid  = errors.New("invalid configuration")
)

// Duration wraps time.Duration so YAML values carry a unit ("90s", "24h").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("%w: duration must be a string like \"30s\" or \"24h\"", ErrInvalid)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalid, raw)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// CatalogConfig holds the remote plugin directory settings.
type CatalogConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
}

// CacheConfig holds the tiered cache settings. Path empty means the
// platform cache directory is used.
type CacheConfig struct {
	Path                 string   `yaml:"path"`
	FastTierEnabled      bool     `yaml:"fast_tier_enabled"`
	FastTierCap          Duration `yaml:"fast_tier_cap"`
	CompressionThreshold int      `yaml:"compression_threshold"`
	MetadataTTL          Duration `yaml:"metadata_ttl"`
	ScoresTTL            Duration `yaml:"scores_ttl"`
	SearchTTL            Duration `yaml:"search_ttl"`
	CleanupLimit         int      `yaml:"cleanup_limit"`
	StatsWindow          Duration `yaml:"stats_window"`
	JanitorInterval      Duration `yaml:"janitor_interval"`
}

// RateLimitConfig holds the fixed-window limiter settings.
type RateLimitConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// ScoringConfig holds the platform version and both weight sets.
type ScoringConfig struct {
	PlatformVersion string               `yaml:"platform_version"`
	Weights         scoring.WeightConfig `yaml:"weights"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultConfig returns a complete configuration with safe defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://api.wordpress.org",
			Timeout:   Duration(10 * time.Second),
			UserAgent: "wp-plugin-directory-filters/1.0",
		},
		Cache: CacheConfig{
			FastTierEnabled:      true,
			FastTierCap:          Duration(5 * time.Minute),
			CompressionThreshold: 1024,
			MetadataTTL:          Duration(24 * time.Hour),
			ScoresTTL:            Duration(6 * time.Hour),
			SearchTTL:            Duration(time.Hour),
			CleanupLimit:         500,
			StatsWindow:          Duration(10 * time.Second),
			JanitorInterval:      Duration(time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   Duration(time.Minute),
		},
		Scoring: ScoringConfig{
			PlatformVersion: scoring.DefaultPlatformVersion,
			Weights:         scoring.DefaultWeightConfig(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Parse unmarshals YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if errors.Is(err, ErrInvalid) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path yields the
// validated defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate clamps soft fields and rejects values with no safe substitute.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalid)
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("%w: catalog.base_url must not be empty", ErrInvalid)
	}
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("%w: catalog.base_url must be an http(s) URL", ErrInvalid)
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = DefaultConfig().Catalog.Timeout
	}

	platform := c.Scoring.PlatformVersion
	if !strings.HasPrefix(platform, "v") {
		platform = "v" + platform
	}
	if !semver.IsValid(platform) {
		return fmt.Errorf("%w: scoring.platform_version %q is not a version", ErrInvalid, c.Scoring.PlatformVersion)
	}

	defaults := DefaultConfig().Cache
	if c.Cache.FastTierCap <= 0 {
		c.Cache.FastTierCap = defaults.FastTierCap
	}
	if c.Cache.CompressionThreshold < 0 {
		c.Cache.CompressionThreshold = defaults.CompressionThreshold
	}
	if c.Cache.MetadataTTL <= 0 {
		c.Cache.MetadataTTL = defaults.MetadataTTL
	}
	if c.Cache.ScoresTTL <= 0 {
		c.Cache.ScoresTTL = defaults.ScoresTTL
	}
	if c.Cache.SearchTTL <= 0 {
		c.Cache.SearchTTL = defaults.SearchTTL
	}
	if c.Cache.CleanupLimit <= 0 {
		c.Cache.CleanupLimit = defaults.CleanupLimit
	}
	if c.Cache.StatsWindow < 0 {
		c.Cache.StatsWindow = defaults.StatsWindow
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("%w: rate_limit.requests must be positive", ErrInvalid)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("%w: rate_limit.window must be positive", ErrInvalid)
		}
	}

	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	case "":
		c.Log.Format = LogFormatText
	default:
		return fmt.Errorf("%w: log.format must be %q or %q", ErrInvalid, LogFormatText, LogFormatJSON)
	}

	// Weight sums are not rejected here: the engine substitutes defaults
	// for invalid sets, matching how partial metadata degrades.
	return nil
}
