package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 24*time.Hour, cfg.Matching.TimeWindow())
	assert.Equal(t, 0.25, cfg.Matching.EntityThreshold)
	assert.Equal(t, 0.65, cfg.Matching.CombinedThreshold)
	assert.Equal(t, 5, cfg.Matching.MaxResults)
	assert.Equal(t, 50, cfg.Matching.CandidateLimit)
	assert.Equal(t, 0.1, cfg.Matching.TieBand)
	assert.Equal(t, StrategySequential, cfg.Matching.Strategy)
}

func TestLoadFrom_MergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perspectives.yaml")
	raw := `
database:
  driver: sqlite
  dsn: /tmp/perspectives.db
analysis:
  timeout: 6s
  cacheTtl: 10m
matching:
  tieBand: 0.05
  strategy: parallel
  maxConcurrency: 3
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	t.Setenv(analysisAPIKeyEnv, "sk-test")
	t.Setenv(logLevelEnv, "debug")

	cfg := LoadFrom(path)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/perspectives.db", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns, "unset values keep defaults")
	assert.Equal(t, 6*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Analysis.CacheTTL)
	assert.Equal(t, "sk-test", cfg.Analysis.APIKey)
	assert.Equal(t, 0.05, cfg.Matching.TieBand)
	assert.Equal(t, StrategyParallel, cfg.Matching.Strategy)
	assert.Equal(t, 3, cfg.Matching.MaxConcurrency)
	assert.Equal(t, 0.65, cfg.Matching.CombinedThreshold)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFrom_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, Default().Matching, cfg.Matching)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"entity threshold above one": func(c *Config) { c.Matching.EntityThreshold = 1.5 },
		"negative tie band":          func(c *Config) { c.Matching.TieBand = -0.1 },
		"unknown strategy":           func(c *Config) { c.Matching.Strategy = "fanout" },
		"unbounded parallelism":      func(c *Config) { c.Matching.Strategy = StrategyParallel; c.Matching.MaxConcurrency = 0 },
		"unknown driver":             func(c *Config) { c.Database.Driver = "mysql" },
		"zero window":                func(c *Config) { c.Matching.TimeWindowHours = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
