package google

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Sentinel errors.
var (
	// ErrNotAuthenticated is returned when no user token is available.
	ErrNotAuthenticated = errors.New("google: not authenticated - connect a Google account first")

	// ErrNoCredentials is returned when the OAuth client file is missing.
	ErrNoCredentials = errors.New("google: OAuth client credentials not found")

	// ErrMissingCode is returned when the OAuth callback has no code.
	ErrMissingCode = errors.New("google: authorization code missing")

	// ErrBadState is returned when the OAuth callback state does not match.
	ErrBadState = errors.New("google: OAuth state mismatch")
)

// StatusCode returns the HTTP status of a Google API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsNotFound reports a 404 or 410 from a Google API.
func IsNotFound(err error) bool {
	code := StatusCode(err)
	return code == http.StatusNotFound || code == http.StatusGone
}

// IsUnauthorized reports a 401 or 403 from a Google API.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsRetryable reports rate limiting or a server-side failure.
func IsRetryable(err error) bool {
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}
