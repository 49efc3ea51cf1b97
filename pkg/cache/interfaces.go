package cache

import (
	"errors"

	goredis "github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// ClientProvider hands out the current go-redis client. *redis.Client from
// pkg/redis satisfies it and swaps the client underneath on reconnect.
type ClientProvider interface {
	GetClient() *goredis.Client
}

// CacheStats provides cache performance metrics
type CacheStats struct {
	HitRate       float64 `json:"hitRate"`
	MissRate      float64 `json:"missRate"`
	KeyCount      int     `json:"keyCount"`
	EvictionCount int64   `json:"evictionCount"`
	TotalHits     int64   `json:"totalHits"`
	TotalMisses   int64   `json:"totalMisses"`
}
