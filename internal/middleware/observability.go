package middleware

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/berry-13/bticino-gateway-ha/observability"
)

// Observability returns a middleware that logs and records metrics for HTTP requests.
func Observability(logger observability.Logger, metrics observability.MetricsRecorder) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &observabilityTransport{
			next:    next,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type observabilityTransport struct {
	next    http.RoundTripper
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *observabilityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// Compute URL string once to avoid multiple allocations
	urlStr := req.URL.String()

	t.logger.Debug("http request started",
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "url", Value: urlStr},
		observability.Field{Key: "path", Value: req.URL.Path},
	)

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		t.logger.Error("http request failed",
			observability.Field{Key: "method", Value: req.Method},
			observability.Field{Key: "url", Value: urlStr},
			observability.Field{Key: "duration", Value: duration},
			observability.Field{Key: "error", Value: err.Error()},
		)

		t.metrics.RecordError("http_request", "NetworkError")

		//nolint:wrapcheck // Observability middleware logs error but passes it through unchanged
		return nil, err
	}

	fields := []observability.Field{
		{Key: "method", Value: req.Method},
		{Key: "url", Value: urlStr},
		{Key: "status", Value: resp.StatusCode},
		{Key: "duration", Value: duration},
	}

	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("http request completed with error", fields...)
	} else {
		t.logger.Debug("http request completed", fields...)
	}

	// Record metrics with normalized path to avoid unbounded cardinality
	normalizedPath := normalizePath(req.URL.Path)
	t.metrics.RecordHTTPRequest(req.Method, normalizedPath, resp.StatusCode, duration)

	return resp, nil
}

var (
	// plantPattern matches the plant ID segment of Smarther API paths:
	// /plants/{plantId}/... → /plants/:plant/...
	plantPattern = regexp.MustCompile(`/plants/[^/]+`)
	// modulePattern matches the module ID segment:
	// .../id/value/{moduleId}[/...] → .../id/value/:module[/...]
	modulePattern = regexp.MustCompile(`/id/value/[^/]+`)

	// normalizedPathCache caches normalized paths so repeated requests to the
	// same endpoints skip the regex work. A polling deployment hits a small,
	// fixed set of paths, so the cache stays bounded.
	normalizedPathCache sync.Map
)

// normalizePath replaces plant and module IDs with placeholders to prevent
// unbounded cardinality in metrics.
//
// Examples:
//   - /plants/abc123/topology → /plants/:plant/topology
//   - /chronothermostat/thermoregulation/addressLocation/plants/abc123/modules/parameter/id/value/m1/measures
//     → .../plants/:plant/modules/parameter/id/value/:module/measures
func normalizePath(path string) string {
	// Fast path: check cache
	if cached, ok := normalizedPathCache.Load(path); ok {
		//nolint:forcetypeassert // Cache only stores strings, type assertion is safe
		return cached.(string)
	}

	normalized := plantPattern.ReplaceAllString(path, "/plants/:plant")
	normalized = modulePattern.ReplaceAllString(normalized, "/id/value/:module")

	normalizedPathCache.Store(path, normalized)

	return normalized
}
