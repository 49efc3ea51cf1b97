package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type window struct {
	start time.Time
	count int
}

// MemoryRateLimiter is a fixed-window limiter for single-instance deployments.
type MemoryRateLimiter struct {
	config  *Config
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
	done    chan struct{}
	once    sync.Once

	total   atomic.Int64
	blocked atomic.Int64
}

// NewMemoryRateLimiter creates a new in-memory rate limiter
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	limiter := &MemoryRateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go limiter.cleanupLoop()
	}
	return limiter
}

func (r *MemoryRateLimiter) Allow(_ context.Context, clientID, endpoint string) (Result, error) {
	category := r.config.GetEndpointKey(endpoint)
	limit := r.config.LimitFor(category)
	result := Result{Allowed: true, Category: category, Limit: limit, Remaining: limit.Requests}

	if !r.config.Enabled {
		return result, nil
	}
	r.total.Add(1)

	key := clientID + ":" + category
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok || now.Sub(w.start) >= limit.Window {
		w = &window{start: now}
		r.windows[key] = w
	}

	if w.count >= limit.Requests {
		r.blocked.Add(1)
		result.Allowed = false
		result.Remaining = 0
		result.RetryAfter = w.start.Add(limit.Window).Sub(now)
		return result, nil
	}

	w.count++
	result.Remaining = limit.Requests - w.count
	return result, nil
}

func (r *MemoryRateLimiter) GetStats() RateLimiterStats {
	r.mu.Lock()
	keys := len(r.windows)
	r.mu.Unlock()

	return RateLimiterStats{
		TotalRequests:   r.total.Load(),
		BlockedRequests: r.blocked.Load(),
		ActiveKeys:      keys,
	}
}

// Close stops the cleanup goroutine.
func (r *MemoryRateLimiter) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.cleanup(r.now())
		}
	}
}

// cleanup forgets windows that ended before now.
func (r *MemoryRateLimiter) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var longest time.Duration
	for _, limit := range r.config.DefaultLimits {
		if limit.Window > longest {
			longest = limit.Window
		}
	}

	for key, w := range r.windows {
		if now.Sub(w.start) >= longest {
			delete(r.windows, key)
		}
	}
}
