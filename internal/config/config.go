// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs the batch pipeline.
type ScraperConfig struct {
	Concurrency      int    `mapstructure:"concurrency"`
	UserAgent        string `mapstructure:"user_agent"`
	PerURLTimeoutSec int    `mapstructure:"per_url_timeout_seconds"`
}

// HTTPConfig configures fetch client pooling and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	PoolSize         int `mapstructure:"pool_size"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// ComplianceConfig controls robots and opt-out evaluation.
type ComplianceConfig struct {
	DefaultCrawlDelaySec float64 `mapstructure:"default_crawl_delay_seconds"`
	ProbeTimeoutSeconds  int     `mapstructure:"probe_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DefaultUserAgent identifies the bot: product, version, purpose, and a
// contact address so site operators can reach us.
const DefaultUserAgent = "YdunScraperBot/1.0 (TDM; +https://kitt.agency/bot; contact@kitt.agency)"

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.concurrency", 3)
	v.SetDefault("scraper.user_agent", DefaultUserAgent)
	v.SetDefault("scraper.per_url_timeout_seconds", 60)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.pool_size", 20)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("compliance.default_crawl_delay_seconds", 1.0)
	v.SetDefault("compliance.probe_timeout_seconds", 5)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.UserAgent == "" {
		return fmt.Errorf("scraper.user_agent must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PoolSize <= 0 {
		return fmt.Errorf("http.pool_size must be > 0")
	}
	if c.Compliance.DefaultCrawlDelaySec < 0 {
		return fmt.Errorf("compliance.default_crawl_delay_seconds must be >= 0")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff config into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff cap config into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// DefaultCrawlDelay converts the crawl-delay config into a duration.
func (c Config) DefaultCrawlDelay() time.Duration {
	return time.Duration(c.Compliance.DefaultCrawlDelaySec * float64(time.Second))
}

// ProbeTimeout converts the probe timeout config into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Compliance.ProbeTimeoutSeconds) * time.Second
}

// PerURLTimeout converts the per-URL deadline config into a duration.
func (c Config) PerURLTimeout() time.Duration {
	return time.Duration(c.Scraper.PerURLTimeoutSec) * time.Second
}
