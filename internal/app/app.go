// Package app defines the App struct that composes the application's main
// dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger
//   - the storage engine, its table metadata and the mapping registry
//   - the search counter, optionally cached in redis
//
// It provides the constructor and shutdown logic to run the application
// cleanly.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/countstore/internal/config"
	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/database"
	loggerPkg "github.com/deppfellow/countstore/internal/logger"
	"github.com/deppfellow/countstore/internal/orm"
	"github.com/deppfellow/countstore/internal/record"
	"github.com/deppfellow/countstore/internal/search"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisPingTimeout bounds the startup check of the count cache.
const redisPingTimeout = 5 * time.Second

// App is the application container that holds shared resources.
type App struct {
	// Config holds all environment/config values for the app.
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// Engine is the primary storage engine.
	Engine *database.Engine

	// Metadata holds every table definition; CreateAll has run on Engine.
	Metadata *core.Metadata

	// Registry maps plain types onto Metadata's tables.
	Registry *orm.Registry

	// Redis is the count cache client. Nil when no address is configured
	// or the server did not answer at startup.
	Redis *redis.Client

	// Search answers sentence counts, through the cache when Redis is set.
	Search search.Counter
}

// Option customizes New.
type Option func(*options)

type options struct {
	counter search.Counter
}

// WithCounter replaces the search client (tests, offline runs).
func WithCounter(c search.Counter) Option {
	return func(o *options) { o.counter = c }
}

// New constructs an App and initializes its dependencies.
//
// Initialization performed:
//   - storage engine (pinged) and schema creation
//   - search client, unless one is supplied with WithCounter
//   - redis client when configured
//
// A redis connection failure does not block startup: it is logged and counts
// go straight to the search service.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = loggerPkg.Nop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	md := core.NewMetadata()
	registry := orm.NewRegistry()
	if _, err := record.Register(registry, md); err != nil {
		return nil, fmt.Errorf("failed to register record mapping: %w", err)
	}

	engine, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := md.CreateAll(ctx, engine); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	counter := o.counter
	if counter == nil {
		client, err := search.NewClient(cfg.Search, nil, logger)
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to initialize search client: %w", err)
		}
		counter = client
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Engine:   engine,
		Metadata: md,
		Registry: registry,
		Search:   counter,
	}

	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Address,
		})

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()

		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Error().Err(err).Msg("Failed to connect to Redis, continuing without count cache")
			redisClient.Close()
		} else {
			a.Redis = redisClient
			a.Search = search.NewCachedCounter(counter, redisClient, cfg.Redis.TTL, logger)
		}
	}

	return a, nil
}

// OpenStore opens a private in-memory SQLite engine and creates the schema on
// it. It starts empty whatever database.dsn names and shares nothing with
// a.Engine. The caller closes it.
func (a *App) OpenStore(ctx context.Context) (*database.Engine, error) {
	cfg := a.Config.Database
	cfg.DSN = database.MemoryDSN

	engine, err := database.New(ctx, cfg, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := a.Metadata.CreateAll(ctx, engine); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return engine, nil
}

// Shutdown releases the redis client and the engine's pool.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
		a.Redis = nil
	}

	if err := a.Engine.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
