package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"optscore/internal/metrics"
	"optscore/internal/models"
)

// Cache kinds used in keys and metric labels.
const (
	KindChain      = "chain"
	KindUnderlying = "underlying"
	KindHistory    = "history"
)

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// RedisCache is a read-through msgpack cache in front of another provider.
// Redis failures fall through to the inner provider.
type RedisCache struct {
	inner   Provider
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Registry
	logger  zerolog.Logger
}

// NewRedisCache wraps inner. m may be nil.
func NewRedisCache(inner Provider, client *redis.Client, ttl time.Duration, prefix string, m *metrics.Registry, logger zerolog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		prefix:  prefix,
		metrics: m,
		logger:  logger,
	}
}

// Name implements Provider.
func (c *RedisCache) Name() string { return "redis+" + c.inner.Name() }

// Key builds the cache key for kind and symbol.
func (c *RedisCache) Key(kind, symbol string, params ...string) string {
	key := c.prefix + kind + ":" + symbol
	for _, p := range params {
		key += ":" + p
	}
	return key
}

// lookup decodes a cached value into dst. ok is false on a miss or any
// Redis or decoding failure; reachable reports whether Redis answered.
func (c *RedisCache) lookup(ctx context.Context, kind, key string, dst interface{}) (ok, reachable bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.metrics.RecordCache(kind, false)
		return false, true
	case err != nil:
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		c.metrics.RecordCache(kind, false)
		return false, false
	}
	if err := msgpack.Unmarshal(raw, dst); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		c.metrics.RecordCache(kind, false)
		return false, true
	}
	c.metrics.RecordCache(kind, true)
	return true, true
}

func (c *RedisCache) store(ctx context.Context, key string, v interface{}) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// OptionsChain implements Provider.
func (c *RedisCache) OptionsChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	key := c.Key(KindChain, symbol)
	var chain models.OptionChain
	hit, reachable := c.lookup(ctx, KindChain, key, &chain)
	if hit {
		return &chain, nil
	}
	out, err := c.inner.OptionsChain(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if reachable {
		c.store(ctx, key, out)
	}
	return out, nil
}

// Underlying implements Provider.
func (c *RedisCache) Underlying(ctx context.Context, symbol string) (*models.UnderlyingSnapshot, error) {
	key := c.Key(KindUnderlying, symbol)
	var u models.UnderlyingSnapshot
	hit, reachable := c.lookup(ctx, KindUnderlying, key, &u)
	if hit {
		return &u, nil
	}
	out, err := c.inner.Underlying(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if reachable {
		c.store(ctx, key, out)
	}
	return out, nil
}

// PriceHistory implements Provider.
func (c *RedisCache) PriceHistory(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	key := c.Key(KindHistory, symbol, strconv.Itoa(days))
	var bars []models.Bar
	hit, reachable := c.lookup(ctx, KindHistory, key, &bars)
	if hit {
		return bars, nil
	}
	out, err := c.inner.PriceHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if reachable {
		c.store(ctx, key, out)
	}
	return out, nil
}

// Invalidate drops every cached entry for symbol.
func (c *RedisCache) Invalidate(ctx context.Context, symbol string) error {
	keys, err := c.client.Keys(ctx, c.Key(KindHistory, symbol, "*")).Result()
	if err != nil {
		return fmt.Errorf("redis keys: %w", err)
	}
	keys = append(keys, c.Key(KindChain, symbol), c.Key(KindUnderlying, symbol))
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
