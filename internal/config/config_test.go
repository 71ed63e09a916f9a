package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

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
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(300), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Anthropic.MaxAttempts)
	assert.Equal(t, 2000, cfg.Anthropic.BackoffMs)
	assert.Equal(t, 30, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 2, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 1.0, cfg.Fetch.RequestsPerSec, 0.001)
	assert.Equal(t, []string{"Maroc", "France", "Canada"}, cfg.Sources.Countries)
	assert.Equal(t, 10, cfg.Sources.MaxPerSource)
	assert.Equal(t, 3000, cfg.Sources.DelayMs)
	assert.Equal(t, 120, cfg.Sources.TimeoutSecs)
	assert.Empty(t, cfg.Sources.Keywords)
	assert.False(t, cfg.Sources.IncludeExamples)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrentSources)
	assert.Equal(t, 60, cfg.Pipeline.RunRetentionMins)
	assert.Equal(t, 5, cfg.Enrich.WebsiteTimeoutSecs)
	assert.Equal(t, 10, cfg.Enrich.EmailTimeoutSecs)
	assert.Equal(t, 24, cfg.Enrich.CacheTTLHours)
	assert.True(t, cfg.Enrich.FetchWebsite)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "leads:", cfg.Redis.Prefix)
	assert.Equal(t, 3, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 300, cfg.Circuit.ResetTimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
sources:
  countries: [France]
  max_per_source: 5
  include_examples: true
  keywords: [GTB, BMS]
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, []string{"France"}, cfg.Sources.Countries)
	assert.Equal(t, 5, cfg.Sources.MaxPerSource)
	assert.True(t, cfg.Sources.IncludeExamples)
	assert.Equal(t, []string{"GTB", "BMS"}, cfg.Sources.Keywords)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrentSources)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("LEADS_SERVER_PORT", "7070")
	t.Setenv("LEADS_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("LEADS_REDIS_ADDR", "localhost:6379")
	t.Setenv("LEADS_STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadFile(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\nanthropic:\n  timeout_secs: 5\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validDefaults() *Config {
	return &Config{
		Store:    StoreConfig{Driver: "sqlite"},
		Sources:  SourcesConfig{Countries: []string{"Maroc"}, MaxPerSource: 10},
		Pipeline: PipelineConfig{MaxConcurrentSources: 4},
		Server:   ServerConfig{Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "run ok", mode: "run"},
		{name: "serve ok", mode: "serve"},
		{name: "memory driver", mode: "run", mutate: func(c *Config) { c.Store.Driver = "memory" }},
		{
			name: "postgres with url", mode: "run",
			mutate: func(c *Config) { c.Store.Driver, c.Store.DatabaseURL = "postgres", "postgres://x" },
		},
		{
			name: "postgres without url", mode: "run",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.database_url is required",
		},
		{
			name: "unknown driver", mode: "run",
			mutate:  func(c *Config) { c.Store.Driver = "mongo" },
			wantErr: "store.driver must be one of",
		},
		{
			name: "max per source too high", mode: "run",
			mutate:  func(c *Config) { c.Sources.MaxPerSource = 101 },
			wantErr: "sources.max_per_source",
		},
		{
			name: "concurrency zero", mode: "run",
			mutate:  func(c *Config) { c.Pipeline.MaxConcurrentSources = 0 },
			wantErr: "pipeline.max_concurrent_sources",
		},
		{
			name: "no countries", mode: "run",
			mutate:  func(c *Config) { c.Sources.Countries = nil },
			wantErr: "sources.countries",
		},
		{
			name: "serve bad port", mode: "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name: "run ignores port", mode: "run",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{name: "unknown mode", mode: "batch", wantErr: "unknown validation mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Sources.MaxPerSource = 0
	cfg.Server.Port = 70000

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
	assert.Contains(t, err.Error(), "sources.max_per_source")
	assert.Contains(t, err.Error(), "server.port")
}

func TestDurations(t *testing.T) {
	cfg := &Config{Sources: SourcesConfig{DelayMs: 1500, TimeoutSecs: 120}}
	assert.Equal(t, 1500*time.Millisecond, cfg.SourceDelay())
	assert.Equal(t, 2*time.Minute, cfg.SourceTimeout())
}

func TestInitLogger(t *testing.T) {
	orig := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(orig) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: parse log level")
}
