package retry_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/berry-13/bticino-gateway-ha/internal/retry"
)

func TestShouldRetryStatus(t *testing.T) {
	t.Parallel()

	retryable := []int{http.StatusRequestTimeout, http.StatusInternalServerError}
	for _, status := range retryable {
		if !retry.ShouldRetryStatus(status) {
			t.Errorf("ShouldRetryStatus(%d) = false, want true", status)
		}
	}

	terminal := []int{200, 201, 204, 400, 401, 403, 404, 429, 469, 470, 502, 503}
	for _, status := range terminal {
		if retry.ShouldRetryStatus(status) {
			t.Errorf("ShouldRetryStatus(%d) = true, want false", status)
		}
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base := 1 * time.Second
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}

	for attempt, expected := range want {
		if got := retry.Backoff(base, attempt); got != expected {
			t.Errorf("Backoff(%v, %d) = %v, want %v", base, attempt, got, expected)
		}
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestShouldRetryTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout", err: timeoutError{}, want: true},
		{name: "wrapped timeout", err: errors.Wrap(timeoutError{}, "request failed"), want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "connection error", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: true},
		{name: "server disconnect", err: io.EOF, want: true},
		{name: "unexpected EOF", err: io.ErrUnexpectedEOF, want: true},
		{name: "canceled context", err: context.Canceled, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retry.ShouldRetryTransport(tt.err); got != tt.want {
				t.Errorf("ShouldRetryTransport(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	if !retry.IsTimeout(timeoutError{}) {
		t.Error("IsTimeout(timeoutError) = false, want true")
	}
	if !retry.IsTimeout(context.DeadlineExceeded) {
		t.Error("IsTimeout(DeadlineExceeded) = false, want true")
	}
	if retry.IsTimeout(io.EOF) {
		t.Error("IsTimeout(EOF) = true, want false")
	}
}
