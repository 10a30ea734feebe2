// Package observability provides interfaces for logging and metrics
// collection in the bticino-gateway-ha library.
//
// The package defines small interfaces that let consumers plug their own
// logging and metrics implementations into the API client and the polling
// coordinators.
//
// # Logger Interface
//
// The Logger interface supports structured logging with key-value pairs:
//
//	logger := observability.NewZapLogger(zapLogger)
//	client, err := smarther.NewWithConfig(&smarther.ClientConfig{
//		Tokens: tokens,
//		Logger: logger,
//	})
//
// Supported log levels:
//   - Debug: detailed diagnostic information
//   - Info: general informational messages
//   - Warn: potentially problematic situations (retries, degraded devices)
//   - Error: failures
//
// # MetricsRecorder Interface
//
// The MetricsRecorder interface tracks API client metrics:
//   - HTTP request count, status codes, and duration
//   - Retry attempts for failed requests
//   - Rate limiting events and wait times
//   - Error occurrences by type
//
// # Default Behavior
//
// If no logger or metrics recorder is provided, the library uses no-op
// implementations that discard all events, so observability carries zero
// overhead when it is not wanted.
package observability
