package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/util"
)

const redisKeyPrefix = "routegate:rl:"

// RedisLimiter applies a fixed-window counter per key in Redis, so limits
// hold across multiple gateway instances. Counter and expiry are updated
// in one pipeline round trip.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
	logger observability.Logger
}

// NewRedisLimiter creates a Redis-backed limiter from cfg.
func NewRedisLimiter(client redis.UniversalClient, cfg Config, logger observability.Logger) *RedisLimiter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	limit := l.cfg.Requests + l.cfg.Burst
	redisKey := redisKeyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.cfg.Window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, util.WrapError(err, "rate limit check")
	}

	count := incr.Val()
	allowed := count <= int64(limit)

	remaining := int(int64(limit) - count)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
	}
	if !allowed {
		retryAfter := ttl.Val()
		if retryAfter < 0 {
			retryAfter = l.cfg.Window
		}
		result.RetryAfter = retryAfter
		l.logger.Debug("rate limit exceeded",
			observability.String("key", key),
			observability.Int64("count", count),
		)
	}
	return result, nil
}

// Reset implements Limiter.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return util.WrapError(err, "rate limit reset")
	}
	return nil
}

// Close implements Limiter. The Redis client is shared, so closing the
// limiter does not close it.
func (l *RedisLimiter) Close() error {
	return nil
}
