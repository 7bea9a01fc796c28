package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthConfiguration is returned when the API demands auth and neither
	// a token nor a username and password are configured.
	ErrAuthConfiguration = errors.New("no usable credentials: set REMAPP_BEARER_TOKEN or REMAPP_USERNAME and REMAPP_PASSWORD")

	// ErrRateLimitExceeded is returned once the rate-limit backoff budget is spent.
	ErrRateLimitExceeded = errors.New("exceeded retries due to rate limiting (429)")

	// ErrInvalidRequest is returned for a detail request without id and slug.
	ErrInvalidRequest = errors.New("missing slug and id for project detail request")

	// ErrMalformedCache marks a cache file that exists but cannot be parsed.
	ErrMalformedCache = errors.New("malformed cache file")
)

// HTTPError is a non-2xx response from the upstream API.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remapp: http %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("remapp: http %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsAuthFailure checks for 401 or 403.
func IsAuthFailure(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsRateLimited checks for 429.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// IsUnprocessable checks for 422.
func IsUnprocessable(err error) bool {
	return StatusCode(err) == http.StatusUnprocessableEntity
}
