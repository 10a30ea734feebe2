package smarther

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/berry-13/bticino-gateway-ha/internal/httpclient"
	"github.com/berry-13/bticino-gateway-ha/internal/middleware"
	"github.com/berry-13/bticino-gateway-ha/internal/ratelimit"
	"github.com/berry-13/bticino-gateway-ha/internal/retry"
	"github.com/berry-13/bticino-gateway-ha/observability"
)

const (
	// DefaultBaseURL is the Smarther v2 API base URL.
	DefaultBaseURL = "https://api.developer.legrand.com/smarther/v2.0"

	// Vendor-specific statuses for account-level preconditions.
	StatusAppPasswordExpired = 469
	StatusAppTermsExpired    = 470

	// Retry configuration. The retry budget covers timeouts, HTTP 408/500
	// and connection failures only.
	DefaultMaxRetries    = 4
	DefaultRetryWaitTime = 1 * time.Second
	DefaultTimeout       = 30 * time.Second

	// DefaultRateLimitPerMinute bounds outgoing requests to stay inside the
	// developer portal's per-subscription quota.
	DefaultRateLimitPerMinute = 100
)

// Client is a typed client for the Legrand Smarther v2 API.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	maxRetries int
	retryWait  time.Duration
	logger     observability.Logger
	metrics    observability.MetricsRecorder
}

// Compile-time check that Client implements the API interface.
var _ API = (*Client)(nil)

// ClientConfig holds configuration for the Smarther API client.
type ClientConfig struct {
	// Tokens provides a valid bearer token per request attempt (required).
	Tokens TokenProvider

	// BaseURL is the base URL for the API (defaults to DefaultBaseURL).
	BaseURL string

	// MaxRetries sets the maximum number of retries for transient failures.
	MaxRetries int

	// RetryWaitTime is the backoff base delay: wait before retry n is
	// RetryWaitTime * 2^n.
	RetryWaitTime time.Duration

	// Timeout bounds each request attempt. Retries get a fresh timeout.
	Timeout time.Duration

	// RateLimitPerMinute sets the client-side rate limit
	// (defaults to DefaultRateLimitPerMinute; negative disables limiting).
	RateLimitPerMinute int

	// Logger for observability (optional, uses noop logger if nil).
	Logger observability.Logger

	// Metrics recorder for observability (optional, uses noop recorder if nil).
	Metrics observability.MetricsRecorder
}

// New creates a Smarther API client with default settings.
//
// Defaults:
//   - Base URL: https://api.developer.legrand.com/smarther/v2.0
//   - Max retries: 4 (five attempts total), backoff 1s, 2s, 4s, 8s
//   - Per-attempt timeout: 30 seconds
//   - Rate limit: 100 requests/minute
//
// For custom configuration, use NewWithConfig.
func New(tokens TokenProvider) (*Client, error) {
	return NewWithConfig(&ClientConfig{Tokens: tokens})
}

// NewWithConfig creates a Smarther API client with custom configuration.
func NewWithConfig(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token provider is required")
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryWaitTime == 0 {
		cfg.RetryWaitTime = DefaultRetryWaitTime
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetricsRecorder()
	}

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitPerMinute)
	if cfg.RateLimitPerMinute < 0 {
		limiter = nil
	}

	// Build middleware chain (first = outermost):
	// Observability -> RateLimit -> BearerAuth. The retry loop in do sits
	// above the chain, so every attempt re-enters BearerAuth and gets a
	// freshly ensured token.
	httpClient := httpclient.New(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithMiddleware(
			middleware.Observability(cfg.Logger, cfg.Metrics),
			middleware.RateLimit(middleware.RateLimitConfig{
				Limiter: limiter,
				Logger:  cfg.Logger,
				Metrics: cfg.Metrics,
			}),
			middleware.BearerAuth(cfg.Tokens.AccessToken),
		),
	)

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		maxRetries: cfg.MaxRetries,
		retryWait:  cfg.RetryWaitTime,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// do executes one API call: marshal the body, run the bounded retry loop,
// classify the outcome. On success the JSON response body is decoded into
// out (which may be nil to discard it); a 204 or non-JSON 2xx leaves out
// untouched.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
	}

	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := retry.Backoff(c.retryWait, attempt-1)
			c.logger.Warn("request failed, retrying",
				observability.Field{Key: "path", Value: path},
				observability.Field{Key: "wait", Value: wait},
				observability.Field{Key: "attempt", Value: attempt + 1},
				observability.Field{Key: "max_attempts", Value: c.maxRetries + 1},
				observability.Field{Key: "error", Value: lastErr.Message},
			)
			c.metrics.RecordRetry(attempt, path)

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return errors.Wrap(ctx.Err(), "canceled while waiting to retry")
			}
		}

		apiErr := c.attempt(ctx, method, path, payload, out)
		if apiErr == nil {
			return nil
		}
		lastErr = apiErr

		if !apiErr.Retryable() {
			c.metrics.RecordError(method+" "+path, apiErr.Kind.String())
			return apiErr
		}
	}

	c.metrics.RecordError(method+" "+path, lastErr.Kind.String())
	return lastErr
}

// attempt performs a single HTTP exchange and classifies its outcome.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) *Error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &Error{Kind: KindGeneric, Message: "invalid request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil || !isJSONResponse(resp) {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindGeneric, StatusCode: resp.StatusCode, Message: "failed to decode response: " + err.Error()}
		}
		return nil
	case http.StatusNoContent:
		return nil
	}

	return classifyStatus(resp.StatusCode, apiMessage(resp))
}

// classifyTransport maps a transport-level failure to a typed error. Token
// acquisition failures surface as authentication errors so the caller can
// trigger re-authorization.
func classifyTransport(err error) *Error {
	if errors.Is(err, middleware.ErrTokenUnavailable) {
		return &Error{Kind: KindAuth, Message: err.Error()}
	}
	if retry.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Message: "request timeout: " + err.Error()}
	}
	if retry.ShouldRetryTransport(err) {
		return &Error{Kind: KindConnection, Message: "connection error: " + err.Error()}
	}
	// Not worth retrying (context canceled, malformed URL, protocol error).
	return &Error{Kind: KindGeneric, Message: err.Error()}
}

// apiMessage extracts the error message from a JSON error response body.
func apiMessage(resp *http.Response) string {
	if !isJSONResponse(resp) {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Message
}

func isJSONResponse(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// moduleEndpoint builds the addressLocation path of one module.
func moduleEndpoint(plantID, moduleID string) string {
	return "/chronothermostat/thermoregulation/addressLocation/plants/" + plantID +
		"/modules/parameter/id/value/" + moduleID
}

// ListPlants retrieves the plants associated with the user.
func (c *Client) ListPlants(ctx context.Context) ([]Plant, error) {
	c.logger.Debug("fetching plants list")

	var resp plantsResponse
	if err := c.do(ctx, http.MethodGet, "/plants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Plants, nil
}

// GetPlantTopology retrieves the complete module tree of a plant.
func (c *Client) GetPlantTopology(ctx context.Context, plantID string) (*PlantTopology, error) {
	c.logger.Debug("fetching plant topology",
		observability.Field{Key: "plant_id", Value: plantID},
	)

	var resp topologyResponse
	if err := c.do(ctx, http.MethodGet, "/plants/"+plantID+"/topology", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Plant, nil
}

// GetChronothermostatStatus retrieves the complete status of a module.
// Returns an empty status if the API reports none.
func (c *Client) GetChronothermostatStatus(ctx context.Context, plantID, moduleID string) (*ChronothermostatStatus, error) {
	c.logger.Debug("fetching chronothermostat status",
		observability.Field{Key: "plant_id", Value: plantID},
		observability.Field{Key: "module_id", Value: moduleID},
	)

	var resp chronothermostatsResponse
	if err := c.do(ctx, http.MethodGet, moduleEndpoint(plantID, moduleID), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chronothermostats) == 0 {
		return &ChronothermostatStatus{}, nil
	}
	return &resp.Chronothermostats[0], nil
}

// GetChronothermostatMeasures retrieves the measured temperature and
// humidity of a module. The payload may be empty.
func (c *Client) GetChronothermostatMeasures(ctx context.Context, plantID, moduleID string) (*Measures, error) {
	c.logger.Debug("fetching chronothermostat measures",
		observability.Field{Key: "plant_id", Value: plantID},
		observability.Field{Key: "module_id", Value: moduleID},
	)

	var resp Measures
	if err := c.do(ctx, http.MethodGet, moduleEndpoint(plantID, moduleID)+"/measures", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetChronothermostatStatus writes a new operating state for a module.
// Optional fields not supplied in opts are omitted from the payload. The
// response body is discarded: the next poll is the source of truth.
func (c *Client) SetChronothermostatStatus(ctx context.Context, plantID, moduleID, function, mode string, opts *SetStatusOptions) error {
	c.logger.Debug("setting chronothermostat status",
		observability.Field{Key: "plant_id", Value: plantID},
		observability.Field{Key: "module_id", Value: moduleID},
		observability.Field{Key: "function", Value: function},
		observability.Field{Key: "mode", Value: mode},
	)

	body := setStatusRequest{
		Function: function,
		Mode:     mode,
	}
	if opts != nil {
		if opts.SetPoint != nil {
			sp := *opts.SetPoint
			if sp.Unit == "" {
				sp.Unit = TempUnitCelsius
			}
			body.SetPoint = &sp
		}
		if opts.ProgramNumber != nil {
			body.Programs = []Program{{Number: *opts.ProgramNumber}}
		}
		if opts.ActivationTime != "" {
			body.ActivationTime = opts.ActivationTime
		}
	}

	return c.do(ctx, http.MethodPost, moduleEndpoint(plantID, moduleID), body, nil)
}

// GetChronothermostatPrograms retrieves the program list managed by a
// module. Returns an empty slice if the module has none.
func (c *Client) GetChronothermostatPrograms(ctx context.Context, plantID, moduleID string) ([]Program, error) {
	c.logger.Debug("fetching chronothermostat programs",
		observability.Field{Key: "plant_id", Value: plantID},
		observability.Field{Key: "module_id", Value: moduleID},
	)

	var resp programListResponse
	if err := c.do(ctx, http.MethodGet, moduleEndpoint(plantID, moduleID)+"/programlist", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chronothermostats) == 0 {
		return []Program{}, nil
	}
	return resp.Chronothermostats[0].Programs, nil
}
