package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and starts its expiry on first use.
// Returns {count, pttl}.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisRateLimiter shares counters across instances.
type RedisRateLimiter struct {
	client *redis.Client
	config *Config

	total   atomic.Int64
	blocked atomic.Int64
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter
func NewRedisRateLimiter(client *redis.Client, config *Config) *RedisRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &RedisRateLimiter{client: client, config: config}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, clientID, endpoint string) (Result, error) {
	category := r.config.GetEndpointKey(endpoint)
	limit := r.config.LimitFor(category)
	result := Result{Allowed: true, Category: category, Limit: limit, Remaining: limit.Requests}

	if !r.config.Enabled {
		return result, nil
	}
	r.total.Add(1)

	key := fmt.Sprintf("%s%s:%s", r.config.RedisKeyPrefix, category, clientID)
	raw, err := fixedWindow.Run(ctx, r.client, []string{key}, limit.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return result, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(raw) != 2 {
		return result, fmt.Errorf("unexpected script result format")
	}

	count, ttl := int(raw[0]), time.Duration(raw[1])*time.Millisecond
	if count > limit.Requests {
		r.blocked.Add(1)
		result.Allowed = false
		result.Remaining = 0
		result.RetryAfter = ttl
		return result, nil
	}

	result.Remaining = limit.Requests - count
	return result, nil
}

func (r *RedisRateLimiter) GetStats() RateLimiterStats {
	stats := RateLimiterStats{
		TotalRequests:   r.total.Load(),
		BlockedRequests: r.blocked.Load(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.config.RedisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.ActiveKeys++
	}
	return stats
}
