package smarther_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/berry-13/bticino-gateway-ha/smarther"
)

func TestStaticTokenProvider(t *testing.T) {
	t.Parallel()

	token, err := smarther.StaticTokenProvider("abc123").AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = smarther.StaticTokenProvider("").AccessToken(context.Background())
	assert.Error(t, err)
}

func TestOAuth2TokenProvider(t *testing.T) {
	t.Parallel()

	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "oauth-token",
		Expiry:      time.Now().Add(time.Hour),
	})

	provider := smarther.NewOAuth2TokenProvider(source)
	token, err := provider.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "oauth-token", token)
}

func TestOAuth2TokenProviderInvalidToken(t *testing.T) {
	t.Parallel()

	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "stale-token",
		Expiry:      time.Now().Add(-time.Hour),
	})

	provider := smarther.NewOAuth2TokenProvider(source)
	_, err := provider.AccessToken(context.Background())
	assert.Error(t, err)
}

func TestOAuth2Endpoint(t *testing.T) {
	t.Parallel()

	endpoint := smarther.OAuth2Endpoint()
	assert.Equal(t, smarther.OAuth2AuthorizeURL, endpoint.AuthURL)
	assert.Equal(t, smarther.OAuth2TokenURL, endpoint.TokenURL)
	assert.Contains(t, smarther.OAuth2Scopes, "comfort.write")
}
