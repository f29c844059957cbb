package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScrapeBaseURL != "https://www.youtube.com" {
		t.Errorf("ScrapeBaseURL = %q", cfg.ScrapeBaseURL)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.CacheTTL)
	}
	if cfg.BatchDelay != 500*time.Millisecond {
		t.Errorf("BatchDelay = %v, want 500ms", cfg.BatchDelay)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.UserAgent == "" || cfg.AcceptLanguage == "" {
		t.Error("scrape headers should have defaults")
	}
}

func TestLoadChannels(t *testing.T) {
	t.Setenv("CHANNELS", "UCaaa, UCbbb ,,UCccc")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"UCaaa", "UCbbb", "UCccc"}
	if len(cfg.Channels) != len(want) {
		t.Fatalf("Channels = %v, want %v", cfg.Channels, want)
	}
	for i := range want {
		if cfg.Channels[i] != want[i] {
			t.Errorf("Channels[%d] = %q, want %q", i, cfg.Channels[i], want[i])
		}
	}
}

func TestLoadInvalidDurations(t *testing.T) {
	for _, tt := range []struct{ key, val string }{
		{"CACHE_TTL", "banana"},
		{"CACHE_TTL", "-5s"},
		{"BATCH_DELAY", "nope"},
		{"POLL_INTERVAL", "0s"},
		{"SCRAPE_RATE", "-1"},
	} {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s: want error", tt.key, tt.val)
			}
		})
	}
}

func TestValidatePollReady(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidatePollReady(); err == nil {
		t.Error("want error with no channels")
	}
	cfg.Channels = []string{"UCabc"}
	if err := cfg.ValidatePollReady(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
