// Package backend opens the catalog and Redis connections the commands share.
package backend

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/infra/cache"
	"github.com/osa030/melodify/internal/infra/config"
	"github.com/osa030/melodify/internal/infra/postgres"
	"github.com/osa030/melodify/internal/infra/postgrest"
)

// Backend holds the opened connections.
type Backend struct {
	Catalog catalog.Store
	Redis   *redis.Client // nil when Redis is not configured

	closers []func()
}

// Open connects the configured catalog driver and, when configured, Redis.
// apiKey is the key the REST catalog authenticates with.
func Open(ctx context.Context, cfg *config.Config, apiKey string) (*Backend, error) {
	b := &Backend{}

	switch cfg.Catalog.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Catalog.DSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.Catalog = postgres.New(pool)
	case "rest", "":
		client, err := postgrest.New(postgrest.Config{URL: cfg.Supabase.URL, APIKey: apiKey})
		if err != nil {
			return nil, err
		}
		b.Catalog = client
	default:
		return nil, errors.Newf("unknown catalog driver: %s", cfg.Catalog.Driver)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.Redis = rdb
	}

	if cfg.CacheEnabled() {
		b.Catalog = cache.New(b.Catalog, b.Redis, cfg.CacheTTL())
	}

	zlog.Info().Msgf("backend: catalog=%s redis=%t cache=%t", cfg.Catalog.Driver, b.Redis != nil, cfg.CacheEnabled())
	return b, nil
}

// Events returns the purchase event bus, or nil without Redis.
func (b *Backend) Events() *cache.Events {
	if b.Redis == nil {
		return nil
	}
	return cache.NewEvents(b.Redis)
}

// Close releases the connections in reverse order.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
