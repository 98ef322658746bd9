// Package config provides configuration for the assistant client and dev server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. HOSTWISE_API_URL.
const EnvPrefix = "HOSTWISE"

// Config holds the application configuration.
type Config struct {
	// API settings
	APIURL           string        `mapstructure:"api_url"`
	APIToken         string        `mapstructure:"api_token"`
	RequestTimeoutMs int           `mapstructure:"request_timeout_ms"`
	RequestTimeout   time.Duration `mapstructure:"-"`

	// Display
	LocaleTZ string `mapstructure:"locale_tz"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Dev DevConfig `mapstructure:"dev"`
}

// DevConfig holds settings for the local dev server.
type DevConfig struct {
	Port         int    `mapstructure:"port"`
	DatabaseURL  string `mapstructure:"database_url"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	MonthlyLimit int    `mapstructure:"monthly_limit"`
	CheckoutURL  string `mapstructure:"checkout_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:3001/api")
	v.SetDefault("api_token", "")
	v.SetDefault("request_timeout_ms", 30000)
	v.SetDefault("locale_tz", "America/Sao_Paulo")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("dev.port", 3001)
	v.SetDefault("dev.database_url", "file:hostwise-dev.db?cache=shared&mode=rwc")
	v.SetDefault("dev.jwt_secret", "hostwise-dev-secret")
	v.SetDefault("dev.monthly_limit", 50)
	v.SetDefault("dev.checkout_url", "http://localhost:3001/billing/checkout/complete")
}

// Load loads configuration from environment variables and, when
// HOSTWISE_CONFIG names a file, from that YAML file first.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	// AutomaticEnv only resolves keys that have a default.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	return cfg, nil
}

// Location resolves LocaleTZ, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LocaleTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
