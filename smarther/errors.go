package smarther

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kind classifies an API failure. Every non-2xx response and every
// transport-level failure maps to exactly one kind.
type Kind int

const (
	// KindGeneric covers any non-2xx status without a more specific kind.
	KindGeneric Kind = iota
	// KindAuth is an authentication failure (HTTP 401 or a token refresh
	// failure). Never retried; the caller must trigger re-authorization.
	KindAuth
	// KindNotFound means the resource is missing or the gateway is offline
	// (HTTP 404). Never retried.
	KindNotFound
	// KindBadRequest is a malformed request (HTTP 400). Never retried.
	KindBadRequest
	// KindVendor is a Legrand account-level precondition failure
	// (HTTP 469/470: expired official-app password or terms). Never retried.
	KindVendor
	// KindTimeout is HTTP 408 or a transport-level timeout. Retried.
	KindTimeout
	// KindServer is HTTP 500. Retried.
	KindServer
	// KindConnection is a transport-level connection failure. Retried.
	KindConnection
)

// String returns the kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	case KindVendor:
		return "vendor"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindConnection:
		return "connection"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Error is a classified Smarther API failure.
type Error struct {
	// Kind is the failure classification.
	Kind Kind
	// StatusCode is the originating HTTP status, or 0 for transport failures.
	StatusCode int
	// Message is a human-readable explanation, preferring the user-facing
	// message for the status over the raw API message.
	Message string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("smarther: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return "smarther: " + e.Message
}

// Retryable reports whether a request failing with this error may be
// attempted again.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindServer || e.Kind == KindConnection
}

// AsError extracts a classified *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return isKind(err, KindAuth) }

// IsNotFound reports whether err is a not-found/offline failure.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsBadRequest reports whether err is a bad-request failure.
func IsBadRequest(err error) bool { return isKind(err, KindBadRequest) }

// IsVendor reports whether err is a Legrand account-level failure (469/470).
func IsVendor(err error) bool { return isKind(err, KindVendor) }

// IsTimeout reports whether err is a timeout failure.
func IsTimeout(err error) bool { return isKind(err, KindTimeout) }

// IsServer reports whether err is a server-side failure.
func IsServer(err error) bool { return isKind(err, KindServer) }

// IsConnection reports whether err is a connection failure.
func IsConnection(err error) bool { return isKind(err, KindConnection) }

func isKind(err error, kind Kind) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == kind
}

// errorCodes holds the API documentation text per status, used when the
// response body carries no message of its own.
var errorCodes = map[int]string{
	http.StatusBadRequest:          "Bad request: something is probably wrong in your request body or headers.",
	http.StatusUnauthorized:        "Unauthorized: user is not authorized to access the requested resource.",
	http.StatusNotFound:            "Resource not found/Gateway offline: something is probably wrong in your request URL or your thermostat is temporarily disconnected from the network.",
	http.StatusRequestTimeout:      "Request timeout",
	StatusAppPasswordExpired:       "Official application password expired: password used in the Thermostat official app is expired. Please renew it through the official application.",
	StatusAppTermsExpired:          "Official application terms and conditions expired: terms and conditions for Thermostat official app are expired. Please accept them again through the official application.",
	http.StatusInternalServerError: "Server internal error",
}

// userErrorMessages holds user-facing text preferred over the raw API
// message for well-known statuses.
var userErrorMessages = map[int]string{
	http.StatusUnauthorized:        "Authentication failed. Please re-authenticate.",
	http.StatusNotFound:            "Thermostat is offline or not found. Check your device connection.",
	http.StatusRequestTimeout:      "Request timed out. Please try again.",
	StatusAppPasswordExpired:       "Your Thermostat app password has expired. Please renew it in the official Legrand Thermostat app.",
	StatusAppTermsExpired:          "Terms and conditions have expired. Please accept them again in the official Legrand Thermostat app.",
	http.StatusInternalServerError: "Server error. Please try again later.",
}

// classifyStatus turns a non-2xx status into a typed error. apiMessage is
// the message found in the error response body, if any.
func classifyStatus(statusCode int, apiMessage string) *Error {
	message := userErrorMessages[statusCode]
	if message == "" {
		message = apiMessage
	}
	if message == "" {
		message = errorCodes[statusCode]
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusCode)
	}

	kind := KindGeneric
	switch statusCode {
	case http.StatusUnauthorized:
		kind = KindAuth
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusBadRequest:
		kind = KindBadRequest
	case StatusAppPasswordExpired, StatusAppTermsExpired:
		kind = KindVendor
	case http.StatusRequestTimeout:
		kind = KindTimeout
	case http.StatusInternalServerError:
		kind = KindServer
	}

	return &Error{Kind: kind, StatusCode: statusCode, Message: message}
}
