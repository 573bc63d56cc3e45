// Package cache provides a Redis read-through cache in front of the catalog
// and a pub/sub channel for purchase events.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
	"github.com/osa030/melodify/internal/domain/track"
)

const (
	keyPrefix  = "melodify:catalog:"
	versionKey = keyPrefix + "version"
)

// Catalog caches song and artist reads of the wrapped store. Writes pass
// through and bump a version that is part of every key, so stale entries
// are never read again and simply expire.
type Catalog struct {
	catalog.Store

	rdb *redis.Client
	ttl time.Duration
}

// New wraps store with a cache on rdb.
func New(store catalog.Store, rdb *redis.Client, ttl time.Duration) *Catalog {
	return &Catalog{Store: store, rdb: rdb, ttl: ttl}
}

// Connect opens a Redis client and checks it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return rdb, nil
}

func (c *Catalog) key(ctx context.Context, parts ...string) string {
	version, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Warn().Err(err).Msg("cache: failed to read version")
	}
	k := keyPrefix + "v" + strconv.FormatInt(version, 10)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// cached loads key into out, or calls load and stores its result.
// Redis failures degrade to calling load.
func cached[T any](ctx context.Context, c *Catalog, key string, load func() (T, error)) (T, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			zlog.Debug().Msgf("cache: hit. key=%v", key)
			return v, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		zlog.Warn().Err(err).Msgf("cache: get failed. key=%v", key)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			zlog.Warn().Err(err).Msgf("cache: set failed. key=%v", key)
		}
	}
	return v, nil
}

// Invalidate drops every cached entry.
func (c *Catalog) Invalidate(ctx context.Context) error {
	return errors.Wrap(c.rdb.Incr(ctx, versionKey).Err(), "failed to bump cache version")
}

// GetSong returns a cached song.
func (c *Catalog) GetSong(ctx context.Context, id string) (*track.Track, error) {
	return cached(ctx, c, c.key(ctx, "song", id), func() (*track.Track, error) {
		return c.Store.GetSong(ctx, id)
	})
}

// ListSongs returns a cached song listing.
func (c *Catalog) ListSongs(ctx context.Context, q catalog.SongQuery) ([]track.Track, error) {
	key := c.key(ctx, "songs", q.ArtistID, q.Genre, strconv.Itoa(q.Limit))
	return cached(ctx, c, key, func() ([]track.Track, error) {
		return c.Store.ListSongs(ctx, q)
	})
}

// GetArtist returns a cached artist.
func (c *Catalog) GetArtist(ctx context.Context, id string) (*track.Artist, error) {
	return cached(ctx, c, c.key(ctx, "artist", id), func() (*track.Artist, error) {
		return c.Store.GetArtist(ctx, id)
	})
}

// ListArtists returns the cached artist listing.
func (c *Catalog) ListArtists(ctx context.Context) ([]track.Artist, error) {
	return cached(ctx, c, c.key(ctx, "artists"), func() ([]track.Artist, error) {
		return c.Store.ListArtists(ctx)
	})
}

// CreateArtist inserts an artist and invalidates the cache.
func (c *Catalog) CreateArtist(ctx context.Context, a track.Artist) (*track.Artist, error) {
	created, err := c.Store.CreateArtist(ctx, a)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return created, nil
}

// CreateSong inserts a song and invalidates the cache.
func (c *Catalog) CreateSong(ctx context.Context, t track.Track) (*track.Track, error) {
	created, err := c.Store.CreateSong(ctx, t)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return created, nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if err := c.Invalidate(ctx); err != nil {
		zlog.Warn().Err(err).Msg("cache: invalidation failed")
	}
}
