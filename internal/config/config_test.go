package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scraper.Concurrency != 3 {
		t.Fatalf("expected default concurrency 3, got %d", cfg.Scraper.Concurrency)
	}
	if !strings.Contains(cfg.Scraper.UserAgent, "YdunScraperBot") {
		t.Fatalf("expected bot user agent, got %q", cfg.Scraper.UserAgent)
	}
	if cfg.HTTP.PoolSize != 20 {
		t.Fatalf("expected default pool size 20, got %d", cfg.HTTP.PoolSize)
	}
	if got := cfg.DefaultCrawlDelay(); got != time.Second {
		t.Fatalf("expected default crawl delay 1s, got %v", got)
	}
	if got := cfg.FetchTimeout(); got != 10*time.Second {
		t.Fatalf("expected fetch timeout 10s, got %v", got)
	}
	if got := cfg.BackoffInitial(); got != 250*time.Millisecond {
		t.Fatalf("expected initial backoff 250ms, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
scraper:
  concurrency: 8
  user_agent: custom-agent/2.0
  per_url_timeout_seconds: 30
http:
  timeout_seconds: 45
  pool_size: 50
  max_retries: 5
  backoff_initial_ms: 100
  backoff_max_ms: 500
compliance:
  default_crawl_delay_seconds: 2.5
  probe_timeout_seconds: 3
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Scraper.Concurrency != 8 || cfg.Scraper.UserAgent != "custom-agent/2.0" {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if cfg.HTTP.PoolSize != 50 || cfg.HTTP.MaxRetries != 5 {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if got := cfg.DefaultCrawlDelay(); got != 2500*time.Millisecond {
		t.Fatalf("expected crawl delay 2.5s, got %v", got)
	}
	if got := cfg.PerURLTimeout(); got != 30*time.Second {
		t.Fatalf("expected per-url timeout 30s, got %v", got)
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging to be disabled")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Scraper: ScraperConfig{Concurrency: 1, UserAgent: "agent/1.0"},
		HTTP:    HTTPConfig{TimeoutSeconds: 10, PoolSize: 20},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Scraper.Concurrency = 0
				return c
			}(),
			want: "scraper.concurrency",
		},
		{
			name: "missing user agent",
			cfg: func() Config {
				c := base
				c.Scraper.UserAgent = ""
				return c
			}(),
			want: "scraper.user_agent",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "invalid pool size",
			cfg: func() Config {
				c := base
				c.HTTP.PoolSize = 0
				return c
			}(),
			want: "http.pool_size",
		},
		{
			name: "negative crawl delay",
			cfg: func() Config {
				c := base
				c.Compliance.DefaultCrawlDelaySec = -1
				return c
			}(),
			want: "default_crawl_delay_seconds",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
