package ratelimit_test

import (
	"testing"

	"golang.org/x/time/rate"

	"github.com/berry-13/bticino-gateway-ha/internal/ratelimit"
)

func TestNewRateLimiter(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewRateLimiter(120)

	if got, want := limiter.Limit(), rate.Limit(2.0); got != want {
		t.Errorf("Limit() = %v, want %v (120 per minute)", got, want)
	}
	if got := limiter.Burst(); got != 120 {
		t.Errorf("Burst() = %d, want 120", got)
	}
}

func TestNewRateLimiterAllowsBurst(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewRateLimiter(5)

	for i := range 5 {
		if !limiter.Allow() {
			t.Fatalf("request %d denied within burst capacity", i)
		}
	}
	if limiter.Allow() {
		t.Error("request beyond burst capacity allowed immediately")
	}
}
