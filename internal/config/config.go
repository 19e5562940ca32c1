package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Golden     GoldenConfig     `yaml:"golden"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig represents tiered cache configuration. Tier TTLs are policy,
// not contract: they changed between revisions of the dashboard and are
// expected to be tuned in deployment config.
type CacheConfig struct {
	Tiers         TierTTLConfig `yaml:"tiers"`
	MemoryMaxSize int           `yaml:"memory_max_size"`
}

// TierTTLConfig maps freshness tiers to TTLs
type TierTTLConfig struct {
	Realtime   time.Duration `yaml:"realtime"`
	Frequent   time.Duration `yaml:"frequent"`
	Stable     time.Duration `yaml:"stable"`
	Historical time.Duration `yaml:"historical"`
}

// GoldenConfig represents golden dataset configuration
type GoldenConfig struct {
	Path       string           `yaml:"path"`
	BackupPath string           `yaml:"backup_path"`
	Windows    TierWindowConfig `yaml:"windows"`
}

// TierWindowConfig maps golden dataset tiers to retention windows
type TierWindowConfig struct {
	Fresh    time.Duration `yaml:"fresh"`
	Stale    time.Duration `yaml:"stale"`
	Archived time.Duration `yaml:"archived"`
	Fallback time.Duration `yaml:"fallback"`
}

// ProvidersConfig represents external data provider configuration
type ProvidersConfig struct {
	Binance      ProviderConfig `yaml:"binance"`
	OKX          ProviderConfig `yaml:"okx"`
	FRED         ProviderConfig `yaml:"fred"`
	AlphaVantage ProviderConfig `yaml:"alphavantage"`
	Farside      ProviderConfig `yaml:"farside"`
	CoinGecko    ProviderConfig `yaml:"coingecko"`
}

// ProviderConfig represents a single provider's endpoint and limits
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	Burst          int           `yaml:"burst"`
}

// AuthConfig represents admin authentication configuration
type AuthConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	AdminKey      string        `yaml:"admin_key"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// RateLimitConfig represents HTTP rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	Filename string `yaml:"filename"`
}

// Load loads configuration from a YAML file, expanding ${VAR} references
// from the environment so API keys never live in the file itself.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	config := Default()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns a configuration with working defaults for every tunable.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "pulsedeck",
			Version: "dev",
			Env:     "development",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Cache: CacheConfig{
			Tiers: TierTTLConfig{
				Realtime:   60 * time.Second,
				Frequent:   30 * time.Minute,
				Stable:     4 * time.Hour,
				Historical: 24 * time.Hour,
			},
			MemoryMaxSize: 10000,
		},
		Golden: GoldenConfig{
			Path:       "data/golden_dataset.json",
			BackupPath: "data/golden_dataset.backup.json",
			Windows: TierWindowConfig{
				Fresh:    6 * time.Hour,
				Stale:    24 * time.Hour,
				Archived: 72 * time.Hour,
				Fallback: 168 * time.Hour,
			},
		},
		Providers: ProvidersConfig{
			Binance: ProviderConfig{
				BaseURL:        "https://fapi.binance.com",
				Timeout:        10 * time.Second,
				RequestsPerSec: 5,
				Burst:          10,
			},
			OKX: ProviderConfig{
				BaseURL:        "https://www.okx.com",
				Timeout:        10 * time.Second,
				RequestsPerSec: 5,
				Burst:          10,
			},
			FRED: ProviderConfig{
				BaseURL:        "https://api.stlouisfed.org",
				Timeout:        15 * time.Second,
				RequestsPerSec: 1,
				Burst:          2,
			},
			AlphaVantage: ProviderConfig{
				BaseURL:        "https://www.alphavantage.co",
				Timeout:        15 * time.Second,
				RequestsPerSec: 0.1,
				Burst:          1,
			},
			Farside: ProviderConfig{
				BaseURL:        "https://farside.co.uk",
				Timeout:        10 * time.Second,
				RequestsPerSec: 1,
				Burst:          2,
			},
			CoinGecko: ProviderConfig{
				BaseURL:        "https://api.coingecko.com",
				Timeout:        10 * time.Second,
				RequestsPerSec: 0.5,
				Burst:          2,
			},
		},
		Auth: AuthConfig{
			TokenDuration: 12 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 300,
			Burst:             50,
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: true,
			PrometheusPath:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Cache.Tiers.Realtime <= 0 || c.Cache.Tiers.Frequent <= 0 ||
		c.Cache.Tiers.Stable <= 0 || c.Cache.Tiers.Historical <= 0 {
		return fmt.Errorf("cache tier TTLs must be positive")
	}
	if c.Golden.Path == "" {
		return fmt.Errorf("golden dataset path is required")
	}
	if c.Golden.BackupPath == "" {
		c.Golden.BackupPath = c.Golden.Path + ".backup"
	}
	w := c.Golden.Windows
	if w.Fresh <= 0 || w.Stale <= 0 || w.Archived <= 0 || w.Fallback <= 0 {
		return fmt.Errorf("golden tier windows must be positive")
	}
	return nil
}
