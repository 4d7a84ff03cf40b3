package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScrapeCooldown != 24*time.Hour {
		t.Fatalf("expected 24h cooldown, got %v", cfg.ScrapeCooldown)
	}
	if cfg.FetchTimeout != 15*time.Second || cfg.RunTimeout != 5*time.Minute {
		t.Fatalf("unexpected timeouts fetch=%v run=%v", cfg.FetchTimeout, cfg.RunTimeout)
	}
	if cfg.StorageType != "bbolt" || cfg.CacheType != "memory" {
		t.Fatalf("unexpected backends storage=%q cache=%q", cfg.StorageType, cfg.CacheType)
	}
	if cfg.HTTPAddr != ":8000" || !cfg.MetricsEnabled {
		t.Fatalf("unexpected http settings %+v", cfg)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SCRAPE_COOLDOWN_SECONDS", "60")
	t.Setenv("CACHE_TYPE", "Redis")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScrapeCooldown != time.Minute {
		t.Fatalf("expected 1m cooldown, got %v", cfg.ScrapeCooldown)
	}
	if cfg.CacheType != "redis" {
		t.Fatalf("expected cache type to be normalized, got %q", cfg.CacheType)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SCRAPE_COOLDOWN_SECONDS": "0",
		"FETCH_TIMEOUT_SECONDS":   "-1",
		"STORAGE_TYPE":            "postgres",
		"CACHE_TYPE":              "memcached",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}
