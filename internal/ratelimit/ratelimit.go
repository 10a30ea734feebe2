// Package ratelimit constructs token-bucket rate limiters for API clients.
package ratelimit

import "golang.org/x/time/rate"

// NewRateLimiter creates a new rate limiter with the specified requests per
// minute. It uses a token bucket where tokens are replenished continuously at
// requestsPerMinute/60 per second, with a burst capacity equal to
// requestsPerMinute.
func NewRateLimiter(requestsPerMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
}
