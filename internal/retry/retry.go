// Package retry contains retryability predicates and backoff computation
// shared by the API request loop.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// ShouldRetryStatus returns true if the HTTP status code indicates a
// transient failure worth retrying:
//   - 408 (Request Timeout)
//   - 500 (Internal Server Error)
//
// All other statuses, including the remaining 4xx and 5xx codes, are
// terminal for a single request.
func ShouldRetryStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout || statusCode == http.StatusInternalServerError
}

// ShouldRetryTransport returns true for transport-level failures that are
// worth retrying: timeouts and connection failures (reset, refused, server
// disconnect). A canceled context is never retryable.
func ShouldRetryTransport(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if IsTimeout(err) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// Server closed the connection mid-response.
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// IsTimeout reports whether the transport error is a timeout, either from
// the per-attempt client timeout or a deadline on the wire.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Backoff returns the exponential backoff delay before retry attempt n
// (0-indexed): base * 2^n.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}
