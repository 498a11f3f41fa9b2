package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ideas.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(750), cfg.Anthropic.MaxTokens)
	assert.True(t, cfg.Explain.Enabled)
	assert.Equal(t, 4, cfg.Explain.MaxInFlight)
	assert.Equal(t, 3, cfg.Explain.MaxAttempts)
	assert.Equal(t, 300, cfg.Explain.BatchTimeoutSecs)
	assert.InDelta(t, 5.0, cfg.Normalize.ScaleDefault, 0.001)
	assert.InDelta(t, 0.0, cfg.Normalize.MonetaryDefault, 0.001)
	assert.Equal(t, 8, cfg.Pipeline.ScoringConcurrency)
	assert.Empty(t, cfg.Weights)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/ideas
log:
  level: debug
  format: console
explain:
  max_in_flight: 8
weights:
  market_business_model: 50
  execution_team: 30
  risk_factors: 20
normalize:
  field_defaults:
    competition_level: 7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Explain.MaxInFlight)
	assert.Equal(t, map[string]float64{
		"market_business_model": 50,
		"execution_team":        30,
		"risk_factors":          20,
	}, cfg.Weights)
	assert.InDelta(t, 7.0, cfg.Normalize.FieldDefaults["competition_level"], 0.001)
	// Defaults still apply for unset values.
	assert.Equal(t, 3, cfg.Explain.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("IDEASCORE_STORE_DRIVER", "postgres")
	t.Setenv("IDEASCORE_LOG_LEVEL", "warn")
	t.Setenv("IDEASCORE_EXPLAIN_MAX_IN_FLIGHT", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 16, cfg.Explain.MaxInFlight)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validConfig() *Config {
	return &Config{
		Store:     StoreConfig{Driver: "sqlite", DatabaseURL: "ideas.db"},
		Anthropic: AnthropicConfig{Key: "sk-ant-test"},
		Explain:   ExplainConfig{Enabled: true, MaxInFlight: 4, RequestsPerSecond: 2},
	}
}

func TestValidate_Score(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate("score"))

	cfg.Anthropic.Key = ""
	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Explain.Enabled = false
	assert.NoError(t, cfg.Validate("score"))
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_UnknownMode(t *testing.T) {
	assert.Error(t, validConfig().Validate("serve"))
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorer.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}))
	zap.L().Info("hello")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
