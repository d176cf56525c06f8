// Package config loads application configuration from config.yaml and
// LEADFLOW_-prefixed environment variables, and wires the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	TechDetect TechDetectConfig `yaml:"techdetect" mapstructure:"techdetect"`
	Whois      WhoisConfig      `yaml:"whois" mapstructure:"whois"`
	Email      EmailConfig      `yaml:"email" mapstructure:"email"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable backend shared by the caches and the
// CRM pipeline. Driver is "postgres" or "sqlite".
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CacheConfig tunes the TTL caches.
type CacheConfig struct {
	TTLDays            int `yaml:"ttl_days" mapstructure:"ttl_days"`
	SweepIntervalMins  int `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
}

// PlacesConfig holds discovery provider settings.
type PlacesConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Actor      string `yaml:"actor" mapstructure:"actor"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// TechDetectConfig holds tech-detection service settings.
type TechDetectConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WhoisConfig holds WHOIS lookup settings.
type WhoisConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EmailConfig holds email verification settings.
type EmailConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EnrichConfig configures the enrichment orchestrator's resilience.
type EnrichConfig struct {
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction    float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold  int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs  int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SearchConfig configures lead search defaults.
type SearchConfig struct {
	MaxResults int     `yaml:"max_results" mapstructure:"max_results"`
	MinRating  float64 `yaml:"min_rating" mapstructure:"min_rating"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "leadflow.db")
	v.SetDefault("cache.ttl_days", 60)
	v.SetDefault("cache.sweep_interval_mins", 60)
	v.SetDefault("places.base_url", "https://api.apify.com")
	v.SetDefault("places.actor", "dtrungtin~google-maps-scraper")
	v.SetDefault("places.max_results", 100)
	v.SetDefault("techdetect.base_url", "http://localhost:8088")
	v.SetDefault("whois.base_url", "https://api.whoisjson.com/v1")
	v.SetDefault("email.base_url", "https://api.neverbounce.com/v4")
	v.SetDefault("enrich.max_attempts", 3)
	v.SetDefault("enrich.initial_backoff_ms", 500)
	v.SetDefault("enrich.max_backoff_ms", 30000)
	v.SetDefault("enrich.backoff_multiplier", 2.0)
	v.SetDefault("enrich.jitter_fraction", 0.25)
	v.SetDefault("enrich.failure_threshold", 5)
	v.SetDefault("enrich.reset_timeout_secs", 30)
	v.SetDefault("search.max_results", 100)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
