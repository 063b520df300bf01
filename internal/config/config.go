// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"omitempty,oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
	Issuer    string `yaml:"issuer"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// RedisConfig is optional; an empty URL disables the catalog cache and complaint lock.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ProviderConfig points at the hosted checkout functions. Both fields are needed
// before a checkout can start; a partially filled section is not an error at load.
type ProviderConfig struct {
	Name       string        `yaml:"name"`
	ClientID   string        `yaml:"client_id"`
	APIBaseURL string        `yaml:"api_base_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout"`
}

func (p ProviderConfig) Configured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.APIBaseURL) != ""
}

type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type CheckoutConfig struct {
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Provider ProviderConfig `yaml:"provider"`
	Sync     SyncConfig     `yaml:"sync"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Locale   string         `yaml:"locale"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded from the
// environment, which is first overlaid with a .env file when one exists.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 20*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)

	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, time.Hour)

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "paypal"
	}
	cfg.Provider.APIBaseURL = strings.TrimRight(cfg.Provider.APIBaseURL, "/")
	cfg.Provider.Timeout = orDefault(cfg.Provider.Timeout, 15*time.Second)

	cfg.Sync.Interval = orDefault(cfg.Sync.Interval, 30*time.Second)

	cfg.Checkout.RedirectDelay = orDefault(cfg.Checkout.RedirectDelay, 3*time.Second)
	cfg.Checkout.SessionTTL = orDefault(cfg.Checkout.SessionTTL, 30*time.Minute)
	cfg.Checkout.SweepInterval = orDefault(cfg.Checkout.SweepInterval, time.Minute)

	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
