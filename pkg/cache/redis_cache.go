package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fleet-safety/internal/models"

	goredis "github.com/redis/go-redis/v9"
)

const emergencyListKey = "emergencies"

// RedisCache stores JSON blobs in Redis. The emergency list is kept under a
// single key so every write to the ledger can drop it with one DEL.
type RedisCache struct {
	client    ClientProvider
	config    CacheConfig
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func NewRedisCache(client ClientProvider, config CacheConfig) *RedisCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultCacheConfig().KeyPrefix
	}
	return &RedisCache{client: client, config: config}
}

// GetEmergencyList returns ErrMiss when nothing is cached.
func (r *RedisCache) GetEmergencyList(ctx context.Context) ([]*models.EmergencyDetails, error) {
	var list []*models.EmergencyDetails
	if err := r.Get(ctx, emergencyListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *RedisCache) SetEmergencyList(ctx context.Context, list []*models.EmergencyDetails, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.config.GetTTLForDataType("emergency_list")
	}
	return r.Set(ctx, emergencyListKey, list, ttl)
}

func (r *RedisCache) InvalidateEmergencyList(ctx context.Context) error {
	return r.Delete(ctx, emergencyListKey)
}

// Get decodes the value stored under key into dest.
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.GetClient().Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			r.misses.Add(1)
			return ErrMiss
		}
		return fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	r.hits.Add(1)
	return nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := r.client.GetClient().Set(ctx, r.buildKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	removed, err := r.client.GetClient().Del(ctx, r.buildKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete %s from cache: %w", key, err)
	}
	r.evictions.Add(removed)
	return nil
}

// GetCacheStats returns cache performance statistics
func (r *RedisCache) GetCacheStats(ctx context.Context) CacheStats {
	hits, misses := r.hits.Load(), r.misses.Load()

	stats := CacheStats{
		TotalHits:     hits,
		TotalMisses:   misses,
		EvictionCount: r.evictions.Load(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
		stats.MissRate = float64(misses) / float64(total)
	}

	var cursor uint64
	for {
		keys, next, err := r.client.GetClient().Scan(ctx, cursor, r.config.KeyPrefix+"*", 100).Result()
		if err != nil {
			break
		}
		stats.KeyCount += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	return stats
}

// HealthCheck verifies cache connectivity
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

func (r *RedisCache) buildKey(key string) string {
	return r.config.KeyPrefix + "cache:" + key
}
