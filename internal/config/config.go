// Package config handles configuration loading for Stocklyzer.
// It supports YAML config files with environment variable overrides
// and reads a local .env file for the provider API key.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// ProviderConfig holds market-data provider settings.
type ProviderConfig struct {
	APIKey     string `mapstructure:"api_key"     yaml:"api_key"`
	BaseURL    string `mapstructure:"base_url"    yaml:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// AnalysisConfig holds the analysis knobs.
type AnalysisConfig struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate" yaml:"risk_free_rate"` // annual, e.g. 0.02
	Lookback     int     `mapstructure:"lookback"       yaml:"lookback"`       // trading days
	Benchmark    string  `mapstructure:"benchmark"      yaml:"benchmark"`      // beta benchmark symbol
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// ErrMissingAPIKey is returned by RequireAPIKey when no provider
// credential is configured. It is the one condition treated as fatal
// at server startup.
var ErrMissingAPIKey = errors.New("provider API key not configured (set STOCKLYZER_PROVIDER_API_KEY or API_KEY)")

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stocklyzer/config.yaml (home directory)
//  3. /etc/stocklyzer/config.yaml (system)
//
// A local .env file is loaded first, so API_KEY in .env works the way
// the usual provider quick-start suggests. Environment variables
// override config file values; format STOCKLYZER_<SECTION>_<KEY>,
// e.g. STOCKLYZER_PROVIDER_API_KEY.
func Load() (*Config, error) {
	// Silently ignore a missing .env.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stocklyzer"))
	v.AddConfigPath("/etc/stocklyzer")

	v.SetEnvPrefix("STOCKLYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STOCKLYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// RequireAPIKey returns ErrMissingAPIKey if no provider credential is
// set. Callers that are about to hit the provider should fail fast
// here instead of on the first request.
func (c *Config) RequireAPIKey() error {
	if c.Provider.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("provider.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("provider.timeout_sec", 30)

	// Analysis defaults
	v.SetDefault("analysis.risk_free_rate", 0.02)
	v.SetDefault("analysis.lookback", 100)
	v.SetDefault("analysis.benchmark", "SPY")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment
// variables. Plain API_KEY is honored for compatibility with the
// provider's own quick-start .env convention.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("STOCKLYZER_PROVIDER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
