package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAttemptRateLimit returns the default rate limit for the attempt
// endpoints (30 requests per minute per IP). The governor's own thresholds
// do the real throttling; this only blunts raw request floods.
func DefaultAttemptRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
	}
}

// DefaultSignalRateLimit returns the default rate limit for behavior
// signal ingestion (240 requests per minute per IP); input cadence signals
// legitimately arrive in bursts.
func DefaultSignalRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 240,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded"}`))
		}),
	)
}
