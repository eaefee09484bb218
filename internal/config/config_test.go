package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/recordkit/recordkit/internal/config"
)

// unset clears an env var for the test and restores it afterwards. Setting an
// empty value is not enough: an empty-but-present variable overrides the
// default.
func unset(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	unset(t, "RECORDKIT_ADDR")
	unset(t, "RECORDKIT_DB")
	unset(t, "RECORDKIT_AUTH_TOKEN")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.DBPath != "recordkit.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "recordkit.db")
	}
	if cfg.AuthToken != "" {
		t.Errorf("AuthToken = %q, want empty", cfg.AuthToken)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.RateLimit.Requests != 600 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %d/%v, want 600/1m", cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	if cfg.Workers.Count != 4 {
		t.Errorf("Workers.Count = %d, want 4", cfg.Workers.Count)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECORDKIT_ADDR", ":9090")
	t.Setenv("RECORDKIT_DB", "/tmp/test.db")
	t.Setenv("RECORDKIT_AUTH_TOKEN", "secret-token")
	t.Setenv("RECORDKIT_CACHE_TTL", "30s")
	t.Setenv("RECORDKIT_RATE_LIMIT_ENABLED", "false")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.AuthToken != "secret-token" {
		t.Errorf("AuthToken = %q, want %q", cfg.AuthToken, "secret-token")
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limit should be disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	unset(t, "RECORDKIT_ADDR")
	unset(t, "RECORDKIT_DB")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("addr: \":7070\"\ndb_path: custom.db\ncache:\n  ttl: 90s\nwebhook:\n  url: http://sink.example/hook\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":7070")
	}
	if cfg.DBPath != "custom.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "custom.db")
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	if cfg.Webhook.URL != "http://sink.example/hook" {
		t.Errorf("Webhook.URL = %q, want the configured sink", cfg.Webhook.URL)
	}
}

// Environment variables override file values.
func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("RECORDKIT_ADDR", ":6060")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":6060" {
		t.Errorf("Addr = %q, want env override :6060", cfg.Addr)
	}
}
