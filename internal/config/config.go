// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/searchlens/visibility-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi" mapstructure:"serpapi"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Collector CollectorConfig `yaml:"collector" mapstructure:"collector"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SerpAPIConfig holds SERP provider settings.
type SerpAPIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	CallsPerMinute int    `yaml:"calls_per_minute" mapstructure:"calls_per_minute"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	Model           string `yaml:"model" mapstructure:"model"`
	CallsPerMinute  int    `yaml:"calls_per_minute" mapstructure:"calls_per_minute"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// CollectorConfig configures collection-run behavior.
type CollectorConfig struct {
	FanOutWidth int `yaml:"fan_out_width" mapstructure:"fan_out_width"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PricingConfig holds per-provider pricing rates (USD).
type PricingConfig struct {
	Anthropic    map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	SerpPerQuery float64                 `yaml:"serp_per_query" mapstructure:"serp_per_query"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("VISIBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "visibility.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serpapi.base_url", "https://serpapi.com/search")
	v.SetDefault("serpapi.calls_per_minute", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.calls_per_minute", 50)
	v.SetDefault("anthropic.cache_ttl_minutes", 60)
	v.SetDefault("collector.fan_out_width", 5)
	v.SetDefault("collector.timeout_secs", 120)
	v.SetDefault("pricing.serp_per_query", 0.015)

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

// Validate checks the fields required by the given command mode. Read-only
// commands (snapshots, usage, export) pass mode "read" and need only the
// store settings.
func (c *Config) Validate(mode string) error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "track":
		check(c.SerpAPI.Key != "", "serpapi.key is required")
		check(c.Anthropic.Key != "", "anthropic.key is required")
	case "track-ai":
		check(c.Anthropic.Key != "", "anthropic.key is required")
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.SerpAPI.Key != "", "serpapi.key is required")
		check(c.Anthropic.Key != "", "anthropic.key is required")
	case "read":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
		"store.driver must be sqlite or postgres")
	check(c.Store.DatabaseURL != "", "store.database_url is required")
	check(c.Collector.FanOutWidth >= 1 && c.Collector.FanOutWidth <= 20,
		"collector.fan_out_width must be between 1 and 20")

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
