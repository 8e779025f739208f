// Package app wires the process-wide dependencies shared by the binaries.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/leozw/vessel-guardian/internal/cache"
	"github.com/leozw/vessel-guardian/internal/config"
	"github.com/leozw/vessel-guardian/internal/db"
	"github.com/leozw/vessel-guardian/internal/metrics"
	"github.com/leozw/vessel-guardian/internal/oplog"
	"github.com/leozw/vessel-guardian/internal/positions"
	"github.com/leozw/vessel-guardian/internal/provider"
	"github.com/leozw/vessel-guardian/internal/ratelimit"
	"github.com/leozw/vessel-guardian/internal/refresh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *sqlx.DB
	Repo         *db.Repository
	Redis        *redis.Client
	Registry     *prometheus.Registry
	Metrics      *metrics.Collector
	Positions    *positions.Store
	Events       *oplog.Log
	Throttle     *ratelimit.Throttle
	Orchestrator *refresh.Orchestrator
}

// New connects to Postgres and Redis and builds the refresh pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	database, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("Database migrations applied")
	}
	repo := db.NewRepository(database)

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     database,
		Repo:   repo,
		Redis:  cache.NewRedisClient(cfg.Redis.URL),
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(cfg.Mimir, a.Registry, logger)

	a.Positions = positions.NewStore(repo)
	a.Events = oplog.New(repo, repo)
	a.Throttle = ratelimit.NewThrottle(a.limiter(), cfg.RateLimit.Providers, cfg.RateLimit.Default)

	settings := refresh.NewSettingsResolver(repo, a.settingsCache(), cfg.Refresh.SettingsTTL, logger)
	a.Orchestrator = refresh.NewOrchestrator(
		repo,
		a.Positions,
		a.Events,
		a.Throttle,
		a.providers(),
		settings,
		a.Metrics,
		logger,
		refresh.Options{
			Provider:      cfg.Refresh.Provider,
			FreshFor:      cfg.Refresh.FreshFor,
			Concurrency:   cfg.Refresh.Concurrency,
			VesselTimeout: cfg.Refresh.VesselTimeout,
		},
	)
	return a, nil
}

func (a *App) limiter() ratelimit.Limiter {
	switch a.Config.RateLimit.Strategy {
	case config.StrategyBucket:
		return ratelimit.NewBucketLimiter()
	case config.StrategyRedis:
		return ratelimit.NewRedisLimiter(a.Redis, a.Logger)
	default:
		return ratelimit.NewWindowLimiter()
	}
}

func (a *App) settingsCache() cache.Cache {
	if a.Config.Cache.Backend == "redis" {
		return cache.NewRedis(a.Redis)
	}
	return cache.NewMemory(a.Config.Cache.MaxEntries)
}

func (a *App) providers() *provider.Registry {
	registry := provider.NewRegistry()
	for name, p := range a.Config.Providers {
		registry.Register(name, provider.HTTPFactory(provider.HTTPConfig{
			Name:    name,
			BaseURL: p.BaseURL,
			Timeout: p.Timeout,
		}), p.APIKey)
	}
	return registry
}

func (a *App) Close() {
	a.Throttle.Close()
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("Failed to close redis", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("Failed to close database", zap.Error(err))
	}
}
