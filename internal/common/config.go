package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Scraper     ScraperConfig   `toml:"scraper"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	History     HistoryConfig   `toml:"history"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ScraperConfig contains browser and extraction orchestrator configuration
type ScraperConfig struct {
	Enabled               bool          `toml:"enabled"`                 // Master switch; searches fail with not_enabled when false
	Headless              bool          `toml:"headless"`                // Run Chrome headless
	NoSandbox             bool          `toml:"no_sandbox"`              // Required in most containers
	UserAgent             string        `toml:"user_agent"`              // Browser user agent
	BaseURL               string        `toml:"base_url"`                // Map search URL prefix; the query text is appended
	Language              string        `toml:"language"`                // hl parameter appended to search URLs
	ViewportWidth         int           `toml:"viewport_width"`          // Emulated viewport size
	ViewportHeight        int           `toml:"viewport_height"`         //
	MaxConcurrentScrapers int           `toml:"max_concurrent_scrapers"` // Parallel extraction pages per batch (hard cap 5)
	MaxResults            int           `toml:"max_results"`             // Global ceiling; per-request maximums are clamped to this
	Conservative          bool          `toml:"conservative"`            // Shorter discovery loops, capped delays
	NavigationTimeout     time.Duration `toml:"navigation_timeout"`      // Per-navigation deadline
	ContentWaitTimeout    time.Duration `toml:"content_wait_timeout"`    // Wait for title-like elements on a detail page
	DiscoveryTimeout      time.Duration `toml:"discovery_timeout"`       // Wall clock guard for the scroll loop
	HealthCheckInterval   time.Duration `toml:"health_check_interval"`   // Minimum interval between browser liveness probes
	MaxScrollAttempts     int           `toml:"max_scroll_attempts"`     // Discovery loop ceiling (normal mode)
	MaxConsecutiveStall   int           `toml:"max_consecutive_stall"`   // No-growth iterations before discovery stops (normal mode)
	ConservativeScrolls   int           `toml:"conservative_scrolls"`    // Discovery loop ceiling (conservative mode)
	ConservativeStall     int           `toml:"conservative_stall"`      // No-growth threshold (conservative mode)
	RetryAttempts         int           `toml:"retry_attempts"`          // Per-target attempts on the sequential path
	ParallelRetryAttempts int           `toml:"parallel_retry_attempts"` // Per-target attempts on the parallel path
	RetryDelay            time.Duration `toml:"retry_delay"`             // Fixed inter-retry delay
	BlockedBackoff        time.Duration `toml:"blocked_backoff"`         // Extra delay after a blocked/sorry page
	ItemDelay             time.Duration `toml:"item_delay"`              // Base inter-item delay on the sequential path
	ItemDelayCap          time.Duration `toml:"item_delay_cap"`          // Delay ceiling in conservative mode
	BatchDelay            time.Duration `toml:"batch_delay"`             // Pause between batches
	PauseCheckInterval    time.Duration `toml:"pause_check_interval"`    // Poll interval while a run is paused
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Max progress events per second pushed to each client
	ProgressPerSec float64 `toml:"progress_per_sec"`
}

// HistoryConfig controls run-summary persistence and retention
type HistoryConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"` // Summaries older than this are purged
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule for the retention sweep
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in mapscout.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/mapscout.db",
				ResetOnStartup: false,
			},
		},
		Scraper: ScraperConfig{
			Enabled:               true,
			Headless:              true,
			NoSandbox:             true,
			UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			BaseURL:               "https://www.google.com/maps/search/",
			Language:              "en",
			ViewportWidth:         1366,
			ViewportHeight:        768,
			MaxConcurrentScrapers: 3,
			MaxResults:            200,
			Conservative:          false,
			NavigationTimeout:     45 * time.Second,
			ContentWaitTimeout:    15 * time.Second,
			DiscoveryTimeout:      3 * time.Minute,
			HealthCheckInterval:   60 * time.Second,
			MaxScrollAttempts:     30,
			MaxConsecutiveStall:   6,
			ConservativeScrolls:   15,
			ConservativeStall:     3,
			RetryAttempts:         3,
			ParallelRetryAttempts: 2,
			RetryDelay:            2 * time.Second,
			BlockedBackoff:        10 * time.Second,
			ItemDelay:             1500 * time.Millisecond,
			ItemDelayCap:          4 * time.Second,
			BatchDelay:            2 * time.Second,
			PauseCheckInterval:    500 * time.Millisecond,
		},
		WebSocket: WebSocketConfig{
			AllowedEvents:  []string{},
			ProgressPerSec: 4,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
			SweepSchedule: "0 3 * * *",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies MAPSCOUT_* environment variables over the loaded config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MAPSCOUT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("MAPSCOUT_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("MAPSCOUT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("MAPSCOUT_DATA_DIR"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("MAPSCOUT_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			config.Scraper.Headless = headless
		}
	}
	if v := os.Getenv("MAPSCOUT_CONSERVATIVE"); v != "" {
		if conservative, err := strconv.ParseBool(v); err == nil {
			config.Scraper.Conservative = conservative
		}
	}
	if v := os.Getenv("MAPSCOUT_SCRAPER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			config.Scraper.Enabled = enabled
		}
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scraper.MaxConcurrentScrapers < 1 {
		return fmt.Errorf("max_concurrent_scrapers must be at least 1, got %d", c.Scraper.MaxConcurrentScrapers)
	}
	if c.Scraper.MaxConcurrentScrapers > 5 {
		return fmt.Errorf("max_concurrent_scrapers is capped at 5, got %d", c.Scraper.MaxConcurrentScrapers)
	}
	if c.Scraper.MaxResults < 1 {
		return fmt.Errorf("scraper max_results must be positive, got %d", c.Scraper.MaxResults)
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper base_url is required")
	}
	if c.History.Enabled && c.History.RetentionDays < 1 {
		return fmt.Errorf("history retention_days must be positive, got %d", c.History.RetentionDays)
	}
	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
