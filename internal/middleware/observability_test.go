package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/berry-13/bticino-gateway-ha/observability"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "plants list",
			path: "/plants",
			want: "/plants",
		},
		{
			name: "topology",
			path: "/plants/a1b2c3/topology",
			want: "/plants/:plant/topology",
		},
		{
			name: "module status",
			path: "/chronothermostat/thermoregulation/addressLocation/plants/a1b2c3/modules/parameter/id/value/m9",
			want: "/chronothermostat/thermoregulation/addressLocation/plants/:plant/modules/parameter/id/value/:module",
		},
		{
			name: "module measures",
			path: "/chronothermostat/thermoregulation/addressLocation/plants/a1b2c3/modules/parameter/id/value/m9/measures",
			want: "/chronothermostat/thermoregulation/addressLocation/plants/:plant/modules/parameter/id/value/:module/measures",
		},
		{
			name: "module programs",
			path: "/chronothermostat/thermoregulation/addressLocation/plants/a1b2c3/modules/parameter/id/value/m9/programlist",
			want: "/chronothermostat/thermoregulation/addressLocation/plants/:plant/modules/parameter/id/value/:module/programlist",
		},
		{
			name: "no identifiers",
			path: "/some/other/path",
			want: "/some/other/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizePathCached(t *testing.T) {
	t.Parallel()

	path := "/plants/cache-test/topology"
	first := normalizePath(path)
	second := normalizePath(path)
	if first != second {
		t.Errorf("cached result %q differs from first %q", second, first)
	}
}

type captureMetrics struct {
	mu       sync.Mutex
	requests []string
	statuses []int
}

func (m *captureMetrics) RecordHTTPRequest(method, path string, statusCode int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, method+" "+path)
	m.statuses = append(m.statuses, statusCode)
}

func (m *captureMetrics) RecordRetry(int, string)               {}
func (m *captureMetrics) RecordRateLimit(string, time.Duration) {}
func (m *captureMetrics) RecordError(string, string)            {}

func TestObservabilityRecordsNormalizedPath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metrics := &captureMetrics{}
	transport := Observability(observability.NoopLogger(), metrics)(http.DefaultTransport)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/plants/abc/topology", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	if len(metrics.requests) != 1 {
		t.Fatalf("recorded requests = %d, want 1", len(metrics.requests))
	}
	if want := "GET /plants/:plant/topology"; metrics.requests[0] != want {
		t.Errorf("recorded request = %q, want %q", metrics.requests[0], want)
	}
	if metrics.statuses[0] != http.StatusOK {
		t.Errorf("recorded status = %d, want 200", metrics.statuses[0])
	}
}
