package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/berry-13/bticino-gateway-ha/internal/middleware"
)

func TestBearerAuthSetsHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport := middleware.BearerAuth(func(_ context.Context) (string, error) {
		return "test-token", nil
	})(http.DefaultTransport)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
}

func TestBearerAuthTokenPerAttempt(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var (
		mu    sync.Mutex
		calls int
	)
	transport := middleware.BearerAuth(func(_ context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return "tok", nil
	})(http.DefaultTransport)

	for range 3 {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		resp, err := transport.RoundTrip(req)
		if err != nil {
			t.Fatalf("RoundTrip: %v", err)
		}
		resp.Body.Close()
	}

	if calls != 3 {
		t.Errorf("token provider calls = %d, want 3", calls)
	}
}

func TestBearerAuthTokenFailure(t *testing.T) {
	t.Parallel()

	transport := middleware.BearerAuth(func(_ context.Context) (string, error) {
		return "", errors.New("refresh token revoked")
	})(http.DefaultTransport)

	req, err := http.NewRequest(http.MethodGet, "http://localhost/ignored", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatal("RoundTrip succeeded, want token error")
	}
	if !errors.Is(err, middleware.ErrTokenUnavailable) {
		t.Errorf("error %v is not marked ErrTokenUnavailable", err)
	}
}

func TestBearerAuthDoesNotMutateOriginalRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport := middleware.BearerAuth(func(_ context.Context) (string, error) {
		return "tok", nil
	})(http.DefaultTransport)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("original request Authorization = %q, want empty", got)
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport := middleware.RateLimit(middleware.RateLimitConfig{})(http.DefaultTransport)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func TestRateLimitDelaysSecondRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	// 1 request per 50ms, burst of 1: the second request must wait.
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)
	transport := middleware.RateLimit(middleware.RateLimitConfig{Limiter: limiter})(http.DefaultTransport)

	start := time.Now()
	for range 2 {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		resp, err := transport.RoundTrip(req)
		if err != nil {
			t.Fatalf("RoundTrip: %v", err)
		}
		resp.Body.Close()
	}

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("two requests completed in %v, want at least ~50ms of rate limit delay", elapsed)
	}
}

func TestRateLimitContextCancellation(t *testing.T) {
	t.Parallel()

	// Burst of 1 already consumed, so the next request must wait a long time.
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()

	transport := middleware.RateLimit(middleware.RateLimitConfig{Limiter: limiter})(http.DefaultTransport)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost/ignored", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatal("RoundTrip succeeded, want context error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}
