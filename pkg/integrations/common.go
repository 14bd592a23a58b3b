package integrations

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single registry request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures (timeouts, connection errors).
	ErrNetwork = errors.New("network error")

	// ErrStatus is returned for any other non-success response.
	ErrStatus = errors.New("unexpected status")

	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformed is returned when a response body cannot be decoded.
	ErrMalformed = errors.New("malformed response")
)

// StatusError carries the HTTP status of a failed response.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", e.Err, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// NewHTTPClient creates an HTTP client with the given request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NormalizePkgID converts a package id to the form used in cache keys and
// on-disk lookups: trimmed and lower-cased. Registry ids are case-insensitive.
func NormalizePkgID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// JoinURL appends escaped path segments to base.
// Empty segments are kept so that a trailing slash can be requested.
func JoinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
