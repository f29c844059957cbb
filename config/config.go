// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Channels to watch for live broadcasts (comma separated channel ids).
	Channels []string

	// Scrape client
	ScrapeBaseURL  string
	UserAgent      string
	AcceptLanguage string
	ScrapeRate     float64 // max upstream requests per second

	// Official Data API (optional; the scrape engine is the fallback)
	YTAPIKey string

	// Cache / batch
	CacheTTL   time.Duration
	BatchDelay time.Duration

	// Live poll job
	PollInterval time.Duration

	// HTTP server
	HTTPAddr string

	// Database (optional; snapshot history disabled when empty)
	DBDsn string
}

// Load reads environment variables and applies defaults. Missing optional
// variables disable features: no DB_DSN means no snapshot history, no
// YT_API_KEY means scrape-only resolution.
func Load() (*Config, error) {
	cfg := &Config{}

	if v := os.Getenv("CHANNELS"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Channels = append(cfg.Channels, c)
			}
		}
	}

	cfg.ScrapeBaseURL = os.Getenv("SCRAPE_BASE_URL")
	if cfg.ScrapeBaseURL == "" {
		cfg.ScrapeBaseURL = "https://www.youtube.com"
	}
	cfg.UserAgent = os.Getenv("SCRAPE_USER_AGENT")
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	cfg.AcceptLanguage = os.Getenv("SCRAPE_ACCEPT_LANGUAGE")
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "en-US,en;q=0.9"
	}
	cfg.ScrapeRate = 2
	if v := os.Getenv("SCRAPE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid SCRAPE_RATE %q", v)
		}
		cfg.ScrapeRate = f
	}

	cfg.YTAPIKey = os.Getenv("YT_API_KEY")

	cfg.CacheTTL = 30 * time.Second
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CACHE_TTL %q", v)
		}
		cfg.CacheTTL = d
	}
	cfg.BatchDelay = 500 * time.Millisecond
	if v := os.Getenv("BATCH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid BATCH_DELAY %q", v)
		}
		cfg.BatchDelay = d
	}
	cfg.PollInterval = time.Minute
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q", v)
		}
		cfg.PollInterval = d
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	return cfg, nil
}

// ValidatePollReady checks required fields when the live poll job is enabled.
func (c *Config) ValidatePollReady() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("missing CHANNELS: the live poll job needs at least one channel id")
	}
	return nil
}
