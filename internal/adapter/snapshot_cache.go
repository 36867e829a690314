package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrCacheMiss is returned by a RedisClient when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// RedisClient abstracts the Redis operations used by SnapshotCache.
// In production this is satisfied by *GoRedis; in tests by a mock.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// GoRedis adapts *redis.Client to the RedisClient interface.
type GoRedis struct {
	client *redis.Client
}

// NewGoRedis connects to Redis with the given settings. The connection is
// lazy; Ping can be used to fail fast at startup.
func NewGoRedis(addr, password string, db int) *GoRedis {
	return &GoRedis{client: redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})}
}

func (g *GoRedis) Get(ctx context.Context, key string) (string, error) {
	v, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (g *GoRedis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return g.client.Set(ctx, key, value, ttl).Err()
}

// Ping checks connectivity.
func (g *GoRedis) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (g *GoRedis) Close() error {
	return g.client.Close()
}

// SnapshotCache is a short-lived read-through cache of fetched order books
// shared between processes. Snapshots are stored as JSON under
//
//	Key: book:{exchange}:{symbol}:{limit}
//
// Cache failures never fail a fetch: the venue is queried instead.
type SnapshotCache struct {
	client RedisClient
	ttl    time.Duration
}

// NewSnapshotCache creates a cache writing entries with the given TTL.
func NewSnapshotCache(client RedisClient, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Wrap returns a Fetcher that consults the cache before calling f and
// stores successful results.
func (sc *SnapshotCache) Wrap(exchange Exchange, f Fetcher) Fetcher {
	return FetcherFunc(func(ctx context.Context, symbol string, limit int) (Orderbook, error) {
		key := cacheKey(exchange, symbol, limit)

		if book, ok := sc.get(ctx, key); ok {
			return book, nil
		}

		book, err := f.FetchOrderbook(ctx, symbol, limit)
		if err != nil {
			return Orderbook{}, err
		}
		sc.put(ctx, key, book)
		return book, nil
	})
}

func (sc *SnapshotCache) get(ctx context.Context, key string) (Orderbook, bool) {
	raw, err := sc.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Debug().Err(err).Str("key", key).Msg("snapshot cache read failed")
		}
		return Orderbook{}, false
	}

	var book Orderbook
	if err := json.Unmarshal([]byte(raw), &book); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("snapshot cache entry corrupt")
		return Orderbook{}, false
	}
	return book, true
}

func (sc *SnapshotCache) put(ctx context.Context, key string, book Orderbook) {
	if sc.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(book)
	if err != nil {
		return
	}
	if err := sc.client.Set(ctx, key, string(raw), sc.ttl); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("snapshot cache write failed")
	}
}

func cacheKey(exchange Exchange, symbol string, limit int) string {
	return fmt.Sprintf("book:%s:%s:%d", exchange, symbol, limit)
}
