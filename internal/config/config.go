package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	HTTPAddr       string `mapstructure:"http_addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`

	ScrapeSchedule        string        `mapstructure:"scrape_schedule"`
	ScrapeCooldownSeconds int64         `mapstructure:"scrape_cooldown_seconds"`
	FetchTimeoutSeconds   int64         `mapstructure:"fetch_timeout_seconds"`
	RunTimeoutSeconds     int64         `mapstructure:"run_timeout_seconds"`
	ScrapeCooldown        time.Duration `mapstructure:"-"`
	FetchTimeout          time.Duration `mapstructure:"-"`
	RunTimeout            time.Duration `mapstructure:"-"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`

	CacheType       string        `mapstructure:"cache_type"`
	CacheTTLSeconds int64         `mapstructure:"cache_ttl_seconds"`
	CacheTTL        time.Duration `mapstructure:"-"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password" json:"-"`
	RedisDB         int           `mapstructure:"redis_db"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-newsdesk")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("scrape_schedule", "@every 24h")
	v.SetDefault("scrape_cooldown_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("fetch_timeout_seconds", 15)
	v.SetDefault("run_timeout_seconds", 300)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/newsdesk.db")
	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_ttl_seconds", int64(time.Hour/time.Second))
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if strings.TrimSpace(cfg.ScrapeSchedule) == "" {
		return fmt.Errorf("scrape_schedule is required")
	}
	if cfg.ScrapeCooldownSeconds <= 0 {
		return fmt.Errorf("invalid scrape_cooldown_seconds (must be positive seconds)")
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch_timeout_seconds (must be positive seconds)")
	}
	if cfg.RunTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid run_timeout_seconds (must be positive seconds)")
	}
	cfg.ScrapeCooldown = time.Duration(cfg.ScrapeCooldownSeconds) * time.Second
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	cfg.RunTimeout = time.Duration(cfg.RunTimeoutSeconds) * time.Second

	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	if cfg.StorageType != "bbolt" {
		return fmt.Errorf("unsupported storage_type %q", cfg.StorageType)
	}

	cfg.CacheType = strings.ToLower(strings.TrimSpace(cfg.CacheType))
	switch cfg.CacheType {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache_type %q", cfg.CacheType)
	}
	if cfg.CacheTTLSeconds <= 0 {
		return fmt.Errorf("invalid cache_ttl_seconds (must be positive seconds)")
	}
	cfg.CacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (cfg *Config) IsProduction() bool {
	return strings.EqualFold(cfg.Env, "production")
}
