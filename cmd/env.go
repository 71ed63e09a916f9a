package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-pipeline/internal/catalog"
	"github.com/sells-group/lead-pipeline/internal/config"
	"github.com/sells-group/lead-pipeline/internal/enrich"
	"github.com/sells-group/lead-pipeline/internal/fetcher"
	"github.com/sells-group/lead-pipeline/internal/pipeline"
	"github.com/sells-group/lead-pipeline/internal/progress"
	"github.com/sells-group/lead-pipeline/internal/resilience"
	"github.com/sells-group/lead-pipeline/internal/scorer"
	"github.com/sells-group/lead-pipeline/internal/source"
	"github.com/sells-group/lead-pipeline/internal/store"
	anthropicpkg "github.com/sells-group/lead-pipeline/pkg/anthropic"
)

// appEnv holds everything the run, serve and reanalyze commands share.
type appEnv struct {
	Store    store.LeadStore
	Sources  *source.Registry
	Runner   *pipeline.Runner
	Service  *pipeline.Service
	Runs     *progress.Registry
	Breakers *resilience.Breakers

	closers []func() error
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// initEnv validates cfg for mode, opens and migrates the store, and wires
// the pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st, closers: []func() error{st.Close}}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	f := newFetcher(c.Fetch)

	reg, err := buildSources(c, f)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Sources = reg

	cache, closeCache := initCache(ctx, c)
	if closeCache != nil {
		env.closers = append(env.closers, closeCache)
	}

	enricher := enrich.New(f, cache, enrich.Options{
		WebsiteTimeout: time.Duration(c.Enrich.WebsiteTimeoutSecs) * time.Second,
		EmailTimeout:   time.Duration(c.Enrich.EmailTimeoutSecs) * time.Second,
		CacheTTL:       time.Duration(c.Enrich.CacheTTLHours) * time.Hour,
		FetchWebsite:   c.Enrich.FetchWebsite,
	})

	sc := scorer.New(initGenerator(c.Anthropic))

	env.Breakers = resilience.NewBreakers(resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs))
	orch := pipeline.New(pipeline.Config{
		MaxConcurrentSources: c.Pipeline.MaxConcurrentSources,
		SourceTimeout:        c.SourceTimeout(),
		MaxPerSource:         c.Sources.MaxPerSource,
		Countries:            c.Sources.Countries,
		Sources:              c.Sources.Enabled,
	}, reg, enricher, sc, catalog.New(st), env.Breakers)

	env.Runs = progress.NewRegistry()
	env.Runner = pipeline.NewRunner(orch, env.Runs).
		WithRetention(time.Duration(c.Pipeline.RunRetentionMins) * time.Minute)
	env.Service = pipeline.NewService(st, enricher, sc)
	return env, nil
}

// initStore opens the configured catalog backend.
func initStore(ctx context.Context, sc config.StoreConfig) (store.LeadStore, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

func newFetcher(fc config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         fc.UserAgent,
		Timeout:           time.Duration(fc.TimeoutSecs) * time.Second,
		MaxRetries:        fc.MaxRetries,
		RequestsPerSecond: fc.RequestsPerSec,
		Burst:             fc.Burst,
		HostRates:         fetcher.DefaultHostRates(),
	})
}

// buildSources loads the board catalogue and registers every connector.
func buildSources(c *config.Config, f fetcher.Fetcher) (*source.Registry, error) {
	cat, err := source.LoadCatalog(c.Sources.BoardsFile)
	if err != nil {
		return nil, err
	}
	return source.Build(cat, f, source.Options{
		Keywords:       c.Sources.Keywords,
		Delay:          c.SourceDelay(),
		RequestTimeout: time.Duration(c.Fetch.TimeoutSecs) * time.Second,
	}, c.Sources.IncludeExamples)
}

// initCache connects to Redis when configured and falls back to memory
// when it is not configured or unreachable.
func initCache(ctx context.Context, c *config.Config) (enrich.Cache, func() error) {
	if c.Redis.Addr == "" {
		return enrich.NewMemoryCache(), nil
	}
	rc, err := enrich.NewRedisCache(ctx, enrich.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	})
	if err != nil {
		zap.L().Warn("redis unavailable, using in-memory inspection cache", zap.Error(err))
		return enrich.NewMemoryCache(), nil
	}
	return rc, rc.Close
}

// initGenerator returns nil when no API key is set, which makes the scorer
// use templated justifications.
func initGenerator(ac config.AnthropicConfig) scorer.TextGenerator {
	if ac.Key == "" {
		return nil
	}
	return anthropicpkg.NewGenerator(anthropicpkg.NewClient(ac.Key), anthropicpkg.GeneratorConfig{
		Model:       ac.Model,
		MaxTokens:   ac.MaxTokens,
		MaxAttempts: ac.MaxAttempts,
		Backoff:     time.Duration(ac.BackoffMs) * time.Millisecond,
		Timeout:     time.Duration(ac.TimeoutSecs) * time.Second,
	})
}
