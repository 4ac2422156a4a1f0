package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config represents the application configuration
type Config struct {
	API    APIConfig    `koanf:"api"`
	Cache  CacheConfig  `koanf:"cache"`
	Server ServerConfig `koanf:"server"`
	Rules  RulesConfig  `koanf:"rules"`
	Log    LogConfig    `koanf:"log"`
}

// APIConfig describes the dealership backend
type APIConfig struct {
	Mode     string            `koanf:"mode"`
	BaseURLs map[string]string `koanf:"base_urls"`
	// overrides BaseURLs when set
	BaseURL string `koanf:"base_url"`
	Timeout string `koanf:"timeout"`
}

// CacheConfig contains cache-related configuration
type CacheConfig struct {
	Enabled  bool   `koanf:"enabled"`
	TTL      string `koanf:"ttl"`
	Coalesce bool   `koanf:"coalesce"`
}

// ServerConfig contains the dev proxy configuration
type ServerConfig struct {
	Port  int         `koanf:"port"`
	HTTPS HTTPSConfig `koanf:"https"`
}

// HTTPSConfig enables TLS interception in the dev proxy
type HTTPSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	CACertFile string `koanf:"ca_cert_file"`
	CAKeyFile  string `koanf:"ca_key_file"`
}

// RulesConfig contains caching rules configuration
type RulesConfig struct {
	Mode  string      `koanf:"mode"` // "whitelist" or "blacklist"
	Rules []CacheRule `koanf:"rules"`
}

// CacheRule defines a caching rule
type CacheRule struct {
	BaseURI string   `koanf:"base_uri"`
	Methods []string `koanf:"methods"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// envOverrides lists the settings that can be changed from the environment
type envOverrides struct {
	Mode         string `env:"DEALER_API_MODE"`
	BaseURL      string `env:"DEALER_API_BASE_URL"`
	CacheEnabled *bool  `env:"DEALER_CACHE_ENABLED"`
	CacheTTL     string `env:"DEALER_CACHE_TTL"`
	Port         int    `env:"DEALER_PROXY_PORT"`
	LogLevel     string `env:"DEALER_LOG_LEVEL"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		API: APIConfig{
			Mode: ModeDevelopment,
			BaseURLs: map[string]string{
				ModeDevelopment: "http://localhost:3000/api",
				ModeProduction:  "https://dealership-backend.onrender.com/api",
			},
			Timeout: "30s",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "5m",
		},
		Server: ServerConfig{Port: 8080},
		Rules:  RulesConfig{Mode: "blacklist"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path when
// not empty, then the environment
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if o.Mode != "" {
		c.API.Mode = o.Mode
	}
	if o.BaseURL != "" {
		c.API.BaseURL = o.BaseURL
	}
	if o.CacheEnabled != nil {
		c.Cache.Enabled = *o.CacheEnabled
	}
	if o.CacheTTL != "" {
		c.Cache.TTL = o.CacheTTL
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	return nil
}

// BaseURL returns the backend URL for the configured mode
func (c *Config) BaseURL() string {
	if c.API.BaseURL != "" {
		return c.API.BaseURL
	}
	return c.API.BaseURLs[c.API.Mode]
}

// GetCacheTTL parses and returns the cache TTL duration
func (c *Config) GetCacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TTL)
}

// GetTimeout parses the backend request timeout. Empty means no timeout.
func (c *Config) GetTimeout() (time.Duration, error) {
	if c.API.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.API.Timeout)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.Mode != ModeDevelopment && c.API.Mode != ModeProduction {
		return fmt.Errorf("api mode must be '%s' or '%s', got: %s", ModeDevelopment, ModeProduction, c.API.Mode)
	}

	if c.BaseURL() == "" {
		return fmt.Errorf("no base URL configured for mode %s", c.API.Mode)
	}

	if _, err := c.GetTimeout(); err != nil {
		return fmt.Errorf("invalid api timeout format: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Cache.TTL == "" {
		return fmt.Errorf("cache TTL is required")
	}

	ttl, err := c.GetCacheTTL()
	if err != nil {
		return fmt.Errorf("invalid cache TTL format: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %s", c.Cache.TTL)
	}

	if c.Rules.Mode != "whitelist" && c.Rules.Mode != "blacklist" {
		return fmt.Errorf("rules mode must be 'whitelist' or 'blacklist', got: %s", c.Rules.Mode)
	}

	if (c.Server.HTTPS.CACertFile == "") != (c.Server.HTTPS.CAKeyFile == "") {
		return fmt.Errorf("https CA needs both a certificate and a key file")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

// SetupLogging applies the configured log level to the standard logger
func (c *Config) SetupLogging() {
	level, err := logrus.ParseLevel(strings.TrimSpace(c.Log.Level))
	if err != nil {
		logrus.Warnf("Unknown log level %q, keeping %s", c.Log.Level, logrus.GetLevel())
		return
	}
	logrus.SetLevel(level)
}
