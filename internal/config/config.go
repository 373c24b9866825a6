package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. Chosen to be polite to small sites while
// keeping single-target runs fast.
const (
	// DefaultTimeout is the per-request timeout. 30 seconds covers slow
	// shared hosting without stalling a run on a dead host for long.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for transient fetch failures.
	// Two retries means three attempts total.
	DefaultMaxRetries = 2

	// DefaultRateLimit is the minimum spacing between requests to one
	// origin. One second is the conventional politeness default.
	DefaultRateLimit = 1 * time.Second

	// DefaultConcurrency is the batch-mode concurrency cap.
	DefaultConcurrency = 10

	// DefaultMaxPages bounds pagination when a target enables it without
	// setting its own budget.
	DefaultMaxPages = 10

	// DefaultMaxBodySize caps response bodies at 5MB. HTML listings are
	// far smaller; the cap guards against unexpected huge responses.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies webharvest in request logs. A
	// descriptive agent string also gives robots.txt a name to match.
	DefaultUserAgent = "webharvest/1.0 (+https://github.com/webharvest/webharvest)"

	// AppName is used for XDG directory paths.
	AppName = "webharvest"
)

// ScraperConfig holds the global scraper defaults from the `scraper:`
// section. Zero values are replaced by the package defaults when the
// file is loaded.
type ScraperConfig struct {
	// Timeout is the per-request timeout.
	Timeout Duration `yaml:"timeout"`

	// MaxRetries is the transient-failure retry budget per fetch.
	MaxRetries *int `yaml:"max_retries"`

	// RateLimit is the minimum same-origin spacing between requests.
	RateLimit Duration `yaml:"rate_limit"`

	// Concurrency caps in-flight URLs in batch mode.
	Concurrency int `yaml:"concurrency"`

	// UserAgent is sent with every request unless a target overrides it.
	UserAgent string `yaml:"user_agent"`

	// MaxBodySize caps response bodies in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`
}

// Config is the loaded configuration file: global defaults plus named
// targets.
type Config struct {
	// Scraper holds the global defaults.
	Scraper ScraperConfig `yaml:"scraper"`

	// Targets maps target names to their definitions.
	Targets map[string]*TargetSpec `yaml:"targets"`
}

// Default returns a Config carrying only the package defaults, for
// commands that run without a configuration file.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// applyDefaults fills unset scraper values with the package defaults.
func (c *Config) applyDefaults() {
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = Duration(DefaultTimeout)
	}
	if c.Scraper.MaxRetries == nil {
		n := DefaultMaxRetries
		c.Scraper.MaxRetries = &n
	}
	if c.Scraper.RateLimit <= 0 {
		c.Scraper.RateLimit = Duration(DefaultRateLimit)
	}
	if c.Scraper.Concurrency <= 0 {
		c.Scraper.Concurrency = DefaultConcurrency
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = DefaultUserAgent
	}
	if c.Scraper.MaxBodySize <= 0 {
		c.Scraper.MaxBodySize = DefaultMaxBodySize
	}
	if c.Targets == nil {
		c.Targets = make(map[string]*TargetSpec)
	}
}

// XDGDataDir returns the XDG data directory for webharvest, the default
// location for output files and the SQLite results store.
// On Linux: ~/.local/share/webharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}
