package ratelimit

import (
	"strings"
	"time"
)

// Config holds the configuration for rate limiting
type Config struct {
	DefaultLimits   map[string]RateLimit `json:"defaultLimits"`
	Endpoints       map[string]string    `json:"endpoints"`
	RedisKeyPrefix  string               `json:"redisKeyPrefix"`
	CleanupInterval time.Duration        `json:"cleanupInterval"`
	Enabled         bool                 `json:"enabled"`
}

// DefaultConfig returns a default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultLimits: map[string]RateLimit{
			// credential guessing
			"manager_login": {Requests: 10, Window: time.Minute},
			"driver_login":  {Requests: 10, Window: time.Minute},
			"trip_current":  {Requests: 30, Window: time.Minute},

			"fleet_write": {Requests: 60, Window: time.Minute},
			"health":      {Requests: 1000, Window: time.Minute},
			"default":     {Requests: 300, Window: time.Minute},
		},
		Endpoints: map[string]string{
			"POST /api/v1/auth/manager/login": "manager_login",
			"POST /api/v1/auth/driver/login":  "driver_login",
			"GET /api/v1/trips/current":       "trip_current",
			"POST /api/v1/drivers":            "fleet_write",
			"PATCH /api/v1/drivers/*":         "fleet_write",
			"POST /api/v1/vehicles":           "fleet_write",
			"PATCH /api/v1/vehicles/*":        "fleet_write",
			"POST /api/v1/trips":              "fleet_write",
			"GET /api/v1/health":              "health",
		},
		RedisKeyPrefix:  "fleet-safety:ratelimit:",
		CleanupInterval: 5 * time.Minute,
		Enabled:         true,
	}
}

// GetEndpointKey maps "METHOD /path" to a limit category.
func (c *Config) GetEndpointKey(endpoint string) string {
	if category, ok := c.Endpoints[endpoint]; ok {
		return category
	}
	for pattern, category := range c.Endpoints {
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(endpoint, strings.TrimSuffix(pattern, "*")) {
			return category
		}
	}
	return "default"
}

// LimitFor returns the limit of a category, falling back to "default".
func (c *Config) LimitFor(category string) RateLimit {
	if limit, ok := c.DefaultLimits[category]; ok && limit.Requests > 0 {
		return limit
	}
	if limit, ok := c.DefaultLimits["default"]; ok && limit.Requests > 0 {
		return limit
	}
	return RateLimit{Requests: 300, Window: time.Minute}
}
