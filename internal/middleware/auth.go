// Package middleware provides reusable HTTP middleware components.
package middleware

import (
	"context"
	"maps"
	"net/http"

	"github.com/cockroachdb/errors"
)

// ErrTokenUnavailable marks request failures caused by the token provider.
// Callers can detect it with errors.Is and surface an authentication error
// instead of a transport one.
var ErrTokenUnavailable = errors.New("bearer token unavailable")

// TokenFunc returns a bearer token valid for one request attempt,
// refreshing it first if it has expired.
type TokenFunc func(ctx context.Context) (string, error)

// BearerAuth returns a middleware that attaches a bearer token to every
// request. The token is obtained per attempt, so a retried request that
// crosses a token expiry boundary still carries a valid credential.
func BearerAuth(tokens TokenFunc) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return &bearerAuthTransport{
			next:   next,
			tokens: tokens,
		}
	}
}

type bearerAuthTransport struct {
	next   http.RoundTripper
	tokens TokenFunc
}

func (t *bearerAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens(req.Context())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to obtain access token"), ErrTokenUnavailable)
	}

	// Clone request to avoid modifying original
	req = cloneRequest(req)

	req.Header.Set("Authorization", "Bearer "+token)

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

// cloneRequest creates a shallow copy of the request with a cloned header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	maps.Copy(r.Header, req.Header)
	return r
}
