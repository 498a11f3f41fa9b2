// Package config loads application settings with viper and bootstraps the zap logger.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig        `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Explain   ExplainConfig      `yaml:"explain" mapstructure:"explain"`
	Normalize NormalizeConfig    `yaml:"normalize" mapstructure:"normalize"`
	Risk      RiskConfig         `yaml:"risk" mapstructure:"risk"`
	Pipeline  PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Weights   map[string]float64 `yaml:"weights" mapstructure:"weights"`
	Pricing   PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Log       LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds Anthropic API settings for explanation generation.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// PricingConfig overrides per-model Claude pricing.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// ExplainConfig configures the explanation stage.
type ExplainConfig struct {
	Enabled            bool    `yaml:"enabled" mapstructure:"enabled"`
	MaxInFlight        int     `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	RequestsPerSecond  float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst              int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	JitterFraction     float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	BatchTimeoutSecs   int     `yaml:"batch_timeout_secs" mapstructure:"batch_timeout_secs"`
	CacheTTLMins       int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	BreakerThreshold   int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs   int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// NormalizeConfig holds the neutral values used when a numeric column has no
// data anywhere in the batch.
type NormalizeConfig struct {
	ScaleDefault    float64            `yaml:"scale_default" mapstructure:"scale_default"`
	MonetaryDefault float64            `yaml:"monetary_default" mapstructure:"monetary_default"`
	FieldDefaults   map[string]float64 `yaml:"field_defaults" mapstructure:"field_defaults"`
}

// RiskConfig points at an optional rule file replacing the built-in rules.
type RiskConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// PipelineConfig tunes the CPU-bound stages.
type PipelineConfig struct {
	ScoringConcurrency int `yaml:"scoring_concurrency" mapstructure:"scoring_concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Load reads configuration from config.yaml and IDEASCORE_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("IDEASCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ideas.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 750)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("explain.enabled", true)
	v.SetDefault("explain.max_in_flight", 4)
	v.SetDefault("explain.requests_per_second", 2.0)
	v.SetDefault("explain.burst", 4)
	v.SetDefault("explain.max_attempts", 3)
	v.SetDefault("explain.initial_backoff_ms", 500)
	v.SetDefault("explain.max_backoff_ms", 10000)
	v.SetDefault("explain.jitter_fraction", 0.25)
	v.SetDefault("explain.request_timeout_secs", 60)
	v.SetDefault("explain.batch_timeout_secs", 300)
	v.SetDefault("explain.cache_ttl_mins", 0)
	v.SetDefault("explain.breaker_threshold", 5)
	v.SetDefault("explain.breaker_reset_secs", 30)
	v.SetDefault("normalize.scale_default", 5.0)
	v.SetDefault("normalize.monetary_default", 0.0)
	v.SetDefault("pipeline.scoring_concurrency", 8)

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

// Validate checks the settings a command needs before it starts work.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score":
		if c.Explain.Enabled && c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when explain.enabled is true")
		}
		if c.Explain.MaxInFlight < 1 {
			errs = append(errs, "explain.max_in_flight must be >= 1")
		}
		if c.Explain.RequestsPerSecond < 0 {
			errs = append(errs, "explain.requests_per_second must be >= 0")
		}
		if c.Explain.BatchTimeoutSecs < 0 {
			errs = append(errs, "explain.batch_timeout_secs must be >= 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite, postgres)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// lines also go to a size-rotated file.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	if cfg.Format == "console" {
		encCfg = zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(logger)

	return nil
}
