package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/cache"
	"github.com/leadflow-pro/leadflow/internal/discovery"
	"github.com/leadflow-pro/leadflow/internal/enrich"
	"github.com/leadflow-pro/leadflow/internal/enrichcache"
	"github.com/leadflow-pro/leadflow/internal/pipeline"
	"github.com/leadflow-pro/leadflow/internal/resilience"
	"github.com/leadflow-pro/leadflow/internal/searchcache"
	"github.com/leadflow-pro/leadflow/pkg/emailverify"
	"github.com/leadflow-pro/leadflow/pkg/places"
	"github.com/leadflow-pro/leadflow/pkg/techdetect"
	"github.com/leadflow-pro/leadflow/pkg/whois"
)

// Cache table names in the durable store.
const (
	searchCacheTable = "search_cache"
	enrichCacheTable = "enrichment_cache"
)

// appEnv holds the initialized stores, caches, clients, and services the
// commands need.
type appEnv struct {
	Pool     *pgxpool.Pool // nil when running on sqlite
	SQLite   *sql.DB       // nil when running on postgres
	Search   *searchcache.Cache
	Enrich   *enrichcache.Cache
	Searcher *discovery.Searcher
	Enricher *enrich.Orchestrator
	Pipe     pipeline.Store
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Pipe != nil {
		e.Pipe.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.SQLite != nil {
		_ = e.SQLite.Close()
	}
}

// initEnv wires the full application: durable backends per the configured
// driver, tiered caches over them, the provider clients, and the services.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	env := &appEnv{}
	ttl := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour

	var searchBackend, enrichBackend cache.Backend
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		pool, err := newPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		env.Pool = pool

		for _, table := range []string{searchCacheTable, enrichCacheTable} {
			if err := cache.MigratePostgres(ctx, pool, table); err != nil {
				env.Close()
				return nil, err
			}
		}
		if err := pipeline.MigratePostgres(ctx, pool); err != nil {
			env.Close()
			return nil, err
		}

		searchBackend = cache.NewPostgres(pool, searchCacheTable)
		enrichBackend = cache.NewPostgres(pool, enrichCacheTable)
		env.Pipe = pipeline.NewPostgres(pool, nil)

	case "sqlite":
		sqlDB, err := cache.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		env.SQLite = sqlDB

		searchBackend, err = cache.NewSQLite(sqlDB, searchCacheTable)
		if err != nil {
			env.Close()
			return nil, err
		}
		enrichBackend, err = cache.NewSQLite(sqlDB, enrichCacheTable)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Pipe, err = pipeline.NewSQLite(sqlDB)
		if err != nil {
			env.Close()
			return nil, err
		}

	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	env.Search = searchcache.New(cache.NewStore(searchBackend, cache.WithTTL(ttl)))
	env.Enrich = enrichcache.New(cache.NewStore(enrichBackend, cache.WithTTL(ttl)))

	placesClient := places.NewClient(cfg.Places.Token,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithActor(cfg.Places.Actor),
	)
	env.Searcher = discovery.NewSearcher(placesClient, env.Search,
		discovery.WithMaxResults(cfg.Places.MaxResults))

	detector := techdetect.NewClient(cfg.TechDetect.BaseURL)
	enrichOpts := []enrich.Option{
		enrich.WithRetry(resilience.FromRetryConfig(
			cfg.Enrich.MaxAttempts,
			cfg.Enrich.InitialBackoffMs,
			cfg.Enrich.MaxBackoffMs,
			cfg.Enrich.BackoffMultiplier,
			cfg.Enrich.JitterFraction,
		)),
		enrich.WithBreaker(resilience.FromCircuitConfig(
			cfg.Enrich.FailureThreshold,
			cfg.Enrich.ResetTimeoutSecs,
		)),
	}
	if cfg.Whois.Key != "" {
		enrichOpts = append(enrichOpts, enrich.WithWhois(
			whois.NewClient(cfg.Whois.Key, whois.WithBaseURL(cfg.Whois.BaseURL))))
	} else {
		zap.L().Debug("LEADFLOW_WHOIS_KEY not set, domain age lookups disabled")
	}
	if cfg.Email.Key != "" {
		enrichOpts = append(enrichOpts, enrich.WithEmailVerifier(
			emailverify.NewClient(cfg.Email.Key, emailverify.WithBaseURL(cfg.Email.BaseURL))))
	} else {
		zap.L().Debug("LEADFLOW_EMAIL_KEY not set, email verification disabled")
	}
	env.Enricher = enrich.New(env.Enrich, detector, enrichOpts...)

	return env, nil
}

// newPool creates a pgx pool with the tuning the app uses everywhere.
func newPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}
