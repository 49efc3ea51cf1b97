package middleware

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"fleet-safety/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware limits requests per client and route category. A
// limiter failure lets the request through. Endpoints listed in exempt
// ("METHOD /route/pattern") are never limited.
func RateLimitMiddleware(limiter ratelimit.RateLimiter, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(exempt))
	for _, endpoint := range exempt {
		skip[endpoint] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[getEndpointID(c)]; ok {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), getClientID(c), getEndpointID(c))
		if err != nil {
			log.Printf("Rate limiter unavailable: %v", err)
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			retryAfter := retrySeconds(result.RetryAfter)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"message":    fmt.Sprintf("Too many requests. Try again in %ds", retryAfter),
				"code":       "RATE_LIMIT_EXCEEDED",
				"retryAfter": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getClientID keys on a trip resolved by DeviceAuth earlier in the chain,
// otherwise the client IP. Unverified credentials never pick the bucket.
func getClientID(c *gin.Context) string {
	if trip, ok := CurrentTrip(c); ok && trip != nil {
		return "trip:" + trip.ID.Hex()
	}
	return "ip:" + c.ClientIP()
}

// getEndpointID uses the matched route pattern so path parameters share a bucket.
func getEndpointID(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

func retrySeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func setRateLimitHeaders(c *gin.Context, result ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit.Requests))
	c.Header("X-RateLimit-Window", strconv.Itoa(int(result.Limit.Window.Seconds())))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

	if !result.Allowed {
		c.Header("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(result.RetryAfter).Unix(), 10))
	}
}
