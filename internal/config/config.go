package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all application configuration. Values come from an optional
// YAML file with environment variable overrides; environment variables always
// win. Secrets (the auth token) come from the environment only.
type Config struct {
	Addr     string `yaml:"addr" env:"RECORDKIT_ADDR" env-default:":8080"`
	DBPath   string `yaml:"db_path" env:"RECORDKIT_DB" env-default:"recordkit.db"`
	LogLevel string `yaml:"log_level" env:"RECORDKIT_LOG_LEVEL" env-default:"info"`

	AuthToken string `yaml:"-" env:"RECORDKIT_AUTH_TOKEN"`

	Cache     CacheConfig     `yaml:"cache"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Workers   WorkerConfig    `yaml:"workers"`
}

// CacheConfig tunes the in-process read cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"RECORDKIT_CACHE_ENABLED" env-default:"true"`
	TTL     time.Duration `yaml:"ttl" env:"RECORDKIT_CACHE_TTL" env-default:"5m"`
}

// WebhookConfig tunes the outbound event sink. An empty URL means events are
// logged instead of delivered.
type WebhookConfig struct {
	URL             string        `yaml:"url" env:"RECORDKIT_WEBHOOK_URL" env-default:""`
	Timeout         time.Duration `yaml:"timeout" env:"RECORDKIT_WEBHOOK_TIMEOUT" env-default:"10s"`
	MaxFailures     int           `yaml:"max_failures" env:"RECORDKIT_WEBHOOK_MAX_FAILURES" env-default:"5"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" env:"RECORDKIT_WEBHOOK_BREAKER_COOLDOWN" env-default:"30s"`
	RequestsPerSec  float64       `yaml:"requests_per_sec" env:"RECORDKIT_WEBHOOK_REQUESTS_PER_SEC" env-default:"0"`
}

// RateLimitConfig tunes the per-tenant request quota.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" env:"RECORDKIT_RATE_LIMIT_ENABLED" env-default:"true"`
	Requests int           `yaml:"requests" env:"RECORDKIT_RATE_LIMIT_REQUESTS" env-default:"600"`
	Window   time.Duration `yaml:"window" env:"RECORDKIT_RATE_LIMIT_WINDOW" env-default:"1m"`
	Burst    int           `yaml:"burst" env:"RECORDKIT_RATE_LIMIT_BURST" env-default:"100"`
}

// WorkerConfig tunes the workflow dispatch pool.
type WorkerConfig struct {
	Count     int `yaml:"count" env:"RECORDKIT_WORKERS" env-default:"4"`
	QueueSize int `yaml:"queue_size" env:"RECORDKIT_QUEUE_SIZE" env-default:"256"`
}

// Load reads configuration from path (default "config.yaml" when empty) with
// environment variable overrides. A missing file is fine; the environment and
// defaults cover everything.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return cfg, nil
}
