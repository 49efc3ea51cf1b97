package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether a client may call an endpoint right now.
// Endpoints are "METHOD /route/pattern" strings; the limiter maps them to a
// category through Config.GetEndpointKey.
type RateLimiter interface {
	Allow(ctx context.Context, clientID, endpoint string) (Result, error)
	GetStats() RateLimiterStats
}

// RateLimit allows Requests calls per Window.
type RateLimit struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Category   string
	Limit      RateLimit
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiterStats provides statistics about rate limiting
type RateLimiterStats struct {
	TotalRequests   int64 `json:"totalRequests"`
	BlockedRequests int64 `json:"blockedRequests"`
	ActiveKeys      int   `json:"activeKeys"`
}
