// Package smarther provides a Go client for the Legrand/BTicino Smarther v2
// chronothermostat API.
//
// The client turns a method+path+optional-body into a parsed result or a
// typed failure, transparently handling bearer token refresh and transient
// failures.
//
// # Error Classification
//
// Every failure is exactly one Error with a Kind:
//   - KindAuth (401, token refresh failure): never retried, triggers re-authorization
//   - KindNotFound (404): never retried, device offline
//   - KindBadRequest (400): never retried
//   - KindVendor (469/470): never retried, account-level precondition expired
//   - KindTimeout (408, transport timeout): retried
//   - KindServer (500): retried
//   - KindConnection (transport connection failure): retried
//   - KindGeneric (anything else): never retried
//
// # Retry Logic
//
// Retryable failures are attempted up to five times with exponential
// backoff (1s, 2s, 4s, 8s between attempts). The bearer token is re-ensured
// before every attempt, since retries may span a token expiry boundary, and
// the request timeout applies per attempt, not cumulatively.
//
// # Example Usage
//
//	tokens := smarther.NewOAuth2TokenProvider(oauthConfig.TokenSource(ctx, token))
//	client, err := smarther.New(tokens)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	plants, err := client.ListPlants(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, plant := range plants {
//	    fmt.Printf("Plant: %s (%s)\n", plant.Name, plant.ID)
//	}
package smarther
