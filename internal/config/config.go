// Package config loads lead-pipeline settings from config.yaml and LEADS_*
// environment variables, and bootstraps the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the lead catalog backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres, sqlite or memory
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig configures justification text generation. An empty key
// disables it and the scorer falls back to templated text.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs   int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures the shared HTTP client.
type FetchConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

// SourcesConfig configures connector selection and behavior.
type SourcesConfig struct {
	Countries       []string `yaml:"countries" mapstructure:"countries"`
	MaxPerSource    int      `yaml:"max_per_source" mapstructure:"max_per_source"`
	DelayMs         int      `yaml:"delay_ms" mapstructure:"delay_ms"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Keywords        []string `yaml:"keywords" mapstructure:"keywords"`
	Enabled         []string `yaml:"enabled" mapstructure:"enabled"`
	BoardsFile      string   `yaml:"boards_file" mapstructure:"boards_file"`
	IncludeExamples bool     `yaml:"include_examples" mapstructure:"include_examples"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	MaxConcurrentSources int `yaml:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`
	RunRetentionMins     int `yaml:"run_retention_mins" mapstructure:"run_retention_mins"`
}

// EnrichConfig configures website inspection.
type EnrichConfig struct {
	WebsiteTimeoutSecs int  `yaml:"website_timeout_secs" mapstructure:"website_timeout_secs"`
	EmailTimeoutSecs   int  `yaml:"email_timeout_secs" mapstructure:"email_timeout_secs"`
	CacheTTLHours      int  `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	FetchWebsite       bool `yaml:"fetch_website" mapstructure:"fetch_website"`
}

// RedisConfig configures the optional inspection cache. An empty Addr
// keeps the cache in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// CircuitConfig configures per-source circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (when present) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// the optional ./config.yaml; a named file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 300)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("anthropic.backoff_ms", 2000)
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; lead-pipeline/1.0)")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.requests_per_sec", 1.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("sources.countries", []string{"Maroc", "France", "Canada"})
	v.SetDefault("sources.max_per_source", 10)
	v.SetDefault("sources.delay_ms", 3000)
	v.SetDefault("sources.timeout_secs", 120)
	v.SetDefault("sources.keywords", []string{}) // empty uses the connector vocabulary
	v.SetDefault("sources.enabled", []string{})
	v.SetDefault("sources.boards_file", "")
	v.SetDefault("sources.include_examples", false)
	v.SetDefault("pipeline.max_concurrent_sources", 4)
	v.SetDefault("pipeline.run_retention_mins", 60)
	v.SetDefault("enrich.website_timeout_secs", 5)
	v.SetDefault("enrich.email_timeout_secs", 10)
	v.SetDefault("enrich.cache_ttl_hours", 24)
	v.SetDefault("enrich.fetch_website", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "leads:")
	v.SetDefault("circuit.failure_threshold", 3)
	v.SetDefault("circuit.reset_timeout_secs", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command needs. mode is "run" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run", "serve":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be one of postgres, sqlite, memory (got \""+c.Store.Driver+"\")")
	}

	if c.Sources.MaxPerSource < 1 || c.Sources.MaxPerSource > 100 {
		problems = append(problems, "sources.max_per_source must be between 1 and 100")
	}
	if c.Pipeline.MaxConcurrentSources < 1 || c.Pipeline.MaxConcurrentSources > 32 {
		problems = append(problems, "pipeline.max_concurrent_sources must be between 1 and 32")
	}
	if len(c.Sources.Countries) == 0 {
		problems = append(problems, "sources.countries must not be empty")
	}

	if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SourceDelay returns the pause between requests to one source.
func (c *Config) SourceDelay() time.Duration {
	return time.Duration(c.Sources.DelayMs) * time.Millisecond
}

// SourceTimeout returns the bound on one connector's fetch.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSecs) * time.Second
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
