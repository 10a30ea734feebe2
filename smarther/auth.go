package smarther

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
)

// OAuth2 endpoints and scopes for the Legrand developer portal.
const (
	OAuth2AuthorizeURL = "https://developer.legrand.com/oauth/authorize"
	OAuth2TokenURL     = "https://developer.legrand.com/oauth/token"
)

// OAuth2Scopes are the scopes required by the client's operations.
var OAuth2Scopes = []string{"topology.read", "comfort.read", "comfort.write"}

// OAuth2Endpoint returns the oauth2 endpoint description for the Legrand
// developer portal, for use with oauth2.Config.
func OAuth2Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  OAuth2AuthorizeURL,
		TokenURL: OAuth2TokenURL,
	}
}

// TokenProvider hands out a valid bearer token on demand, refreshing
// transparently when the current one has expired. Implementations must
// serialize their own refresh so concurrent callers converge on one valid
// token rather than racing separate refreshes.
type TokenProvider interface {
	// AccessToken returns a currently valid access token.
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed token and never refreshes.
// Useful for tests and short-lived tooling.
type StaticTokenProvider string

// AccessToken implements TokenProvider.
func (p StaticTokenProvider) AccessToken(context.Context) (string, error) {
	if p == "" {
		return "", errors.New("static token is empty")
	}
	return string(p), nil
}

// oauth2TokenProvider adapts an oauth2.TokenSource to TokenProvider.
// Sources built with oauth2.Config.TokenSource already wrap
// oauth2.ReuseTokenSource, which serializes refresh internally.
type oauth2TokenProvider struct {
	source oauth2.TokenSource
}

// NewOAuth2TokenProvider returns a TokenProvider backed by the given token
// source.
//
//nolint:ireturn // Factory function returns interface for dependency injection
func NewOAuth2TokenProvider(source oauth2.TokenSource) TokenProvider {
	return &oauth2TokenProvider{source: source}
}

func (p *oauth2TokenProvider) AccessToken(context.Context) (string, error) {
	token, err := p.source.Token()
	if err != nil {
		return "", errors.Wrap(err, "failed to refresh OAuth2 token")
	}
	if !token.Valid() {
		return "", errors.New("OAuth2 token source returned an invalid token")
	}
	return token.AccessToken, nil
}
