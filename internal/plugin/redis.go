package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
)

const redisKeyPrefix = "geocoder:"

// RedisClient is the part of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache stores non-empty results in Redis as JSON for lifetime. Redis
// failures are logged and the query goes to the provider.
func RedisCache(client RedisClient, lifetime time.Duration, logger *slog.Logger, metrics *observability.Metrics) Plugin {
	return func(inner domain.Provider) domain.Provider {
		return &redisCachedProvider{
			wrapped:  wrapped{inner: inner},
			client:   client,
			lifetime: lifetime,
			logger:   logger,
			metrics:  metrics,
		}
	}
}

type redisCachedProvider struct {
	wrapped
	client   RedisClient
	lifetime time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func (c *redisCachedProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	key := redisKeyPrefix + cacheKey(c.inner.Name(), q)

	if res, ok := c.lookup(ctx, key); ok {
		c.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
		return res, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	res, err := c.inner.Geocode(ctx, q)
	if err != nil {
		return nil, err
	}
	if !res.IsEmpty() {
		c.store(ctx, key, res)
	}
	return res, nil
}

func (c *redisCachedProvider) lookup(ctx context.Context, key string) (domain.Collection, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "redis cache read failed", "key", key, "error", err)
		return nil, false
	}
	var res domain.Collection
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.WarnContext(ctx, "redis cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return res, true
}

func (c *redisCachedProvider) store(ctx context.Context, key string, res domain.Collection) {
	b, err := json.Marshal(res)
	if err != nil {
		c.logger.WarnContext(ctx, "redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, b, c.lifetime).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache write failed", "key", key, "error", err)
	}
}
