package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"argus/internal/automation"
	"argus/internal/collector"
	"argus/internal/sensors"
	"argus/internal/types"
)

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Path   string `yaml:"path" validate:"omitempty,startswith=/"`
	APIKey string `yaml:"api_key"`
}

type CollectionConfig struct {
	CriticalCategories     []string `yaml:"critical_categories" validate:"dive,required"`
	InconsistencyThreshold int      `yaml:"inconsistency_threshold" validate:"gte=1"`
	AudioSettleMillis      int      `yaml:"audio_settle_millis" validate:"gte=0,lte=10000"`
	AudioBins              int      `yaml:"audio_bins" validate:"gte=1,lte=4096"`
}

type Config struct {
	ListenAddr      string           `yaml:"listen_addr" validate:"required"`
	TrustProxy      bool             `yaml:"trust_proxy"`
	SecureCookie    bool             `yaml:"secure_cookie"`
	Backend         string           `yaml:"backend" validate:"omitempty,url"`
	ProbeScriptPath string           `yaml:"probe_script_path" validate:"required,startswith=/"`
	CollectPath     string           `yaml:"collect_path" validate:"required,startswith=/"`
	NonceTTLSeconds int              `yaml:"nonce_ttl_seconds" validate:"gte=1"`
	RedisAddr       string           `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	RateLimit       RateLimitConfig  `yaml:"rate_limit"`
	GeoIPDatabase   string           `yaml:"geoip_database"`
	JWTSecret       string           `yaml:"jwt_secret" validate:"required,min=32"`
	TokenTTLMinutes int              `yaml:"token_ttl_minutes" validate:"gte=1"`
	Log             LogConfig        `yaml:"log"`
	Metrics         MetricsConfig    `yaml:"metrics"`
	Collection      CollectionConfig `yaml:"collection"`
}

func DefaultConfig() *Config {
	critical := make([]string, 0, len(collector.DefaultCritical))
	for _, c := range collector.DefaultCritical {
		critical = append(critical, string(c))
	}
	return &Config{
		ListenAddr:      ":8080",
		ProbeScriptPath: "/argus/probe.js",
		CollectPath:     "/argus/collect",
		NonceTTLSeconds: 300,
		RateLimit:       RateLimitConfig{RequestsPerMinute: 60},
		TokenTTLMinutes: 24 * 60,
		Log:             LogConfig{Level: "info", Encoding: "json"},
		Metrics:         MetricsConfig{Path: "/metrics"},
		Collection: CollectionConfig{
			CriticalCategories:     critical,
			InconsistencyThreshold: automation.DefaultInconsistencyThreshold,
			AudioSettleMillis:      int(sensors.DefaultAudioSettle / time.Millisecond),
			AudioBins:              100,
		},
	}
}

// LoadConfig overlays the YAML file at path onto the defaults. The defaults
// are returned alongside any read or parse error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and that every critical category is known.
// There is no default jwt_secret, so a server config must set one.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.ValidateCollection()
}

// ValidateCollection checks only the collection settings, for tools that
// run the collector without serving sessions.
func (c *Config) ValidateCollection() error {
	if err := validate.Struct(c.Collection); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Critical(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Critical() ([]types.Category, error) {
	out := make([]types.Category, 0, len(c.Collection.CriticalCategories))
	for _, name := range c.Collection.CriticalCategories {
		cat, err := types.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

func (c *Config) NonceTTL() time.Duration {
	return time.Duration(c.NonceTTLSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c *Config) AudioSettle() time.Duration {
	return time.Duration(c.Collection.AudioSettleMillis) * time.Millisecond
}
