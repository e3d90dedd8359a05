package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"argus/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	crit, err := cfg.Critical()
	if err != nil {
		t.Fatal(err)
	}
	if len(crit) != 3 || crit[0] != types.Network || crit[1] != types.CanvasRender || crit[2] != types.GraphicsRender {
		t.Fatalf("critical = %v", crit)
	}
	if cfg.AudioSettle() != 100*time.Millisecond {
		t.Fatalf("audio settle = %v", cfg.AudioSettle())
	}
	if cfg.TrustProxy || cfg.SecureCookie {
		t.Fatalf("proxy trust and secure cookies must be opt-in: %+v", cfg)
	}
}

func TestDefaultsRequireJWTSecret(t *testing.T) {
	cfg, _ := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWTSecret") {
		t.Fatalf("expected missing jwt_secret to be rejected, got %v", err)
	}
	if err := cfg.ValidateCollection(); err != nil {
		t.Fatalf("collection settings should still validate: %v", err)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
jwt_secret: "0123456789abcdef0123456789abcdef"
trust_proxy: true
redis_addr: "localhost:6379"
rate_limit:
  requests_per_minute: 30
collection:
  inconsistency_threshold: 4
  critical_categories: [network, audioRender]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9090" || cfg.RateLimit.RequestsPerMinute != 30 || !cfg.TrustProxy {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.Collection.InconsistencyThreshold != 4 || cfg.Collection.AudioBins != 100 {
		t.Fatalf("collection = %+v", cfg.Collection)
	}
	if cfg.CollectPath != "/argus/collect" {
		t.Fatalf("default collect path lost: %q", cfg.CollectPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if cfg == nil || cfg.ListenAddr != ":8080" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	cfg := validConfig()
	cfg.Collection.CriticalCategories = []string{"network", "gpu"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown category to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"short secret":   func(c *Config) { c.JWTSecret = "short" },
		"log level":      func(c *Config) { c.Log.Level = "verbose" },
		"threshold":      func(c *Config) { c.Collection.InconsistencyThreshold = 0 },
		"collect path":   func(c *Config) { c.CollectPath = "collect" },
		"redis address":  func(c *Config) { c.RedisAddr = "no port" },
		"backend scheme": func(c *Config) { c.Backend = "::not a url" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
