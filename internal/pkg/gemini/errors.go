package gemini

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrTimeout is returned when ingest polling exceeds its deadline.
	ErrTimeout = errors.New("gemini: operation timeout")

	// ErrEmptyResponse is returned when the service omits a required field.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// APIError is a non-2xx response from the service
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gemini error (status=%d, code=%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gemini error (status=%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the resource no longer exists remotely.
// Callers treat this as success for deletes and as state drift for reads.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsTransient reports whether the failure is worth retrying: network errors,
// timeouts, throttling and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	// Wrapped transport failures from net/http surface as *url.Error, which
	// implements net.Error; anything else unknown is treated as transient so
	// "we don't know the outcome" is never recorded as a permanent failure.
	return true
}

// IsPermanent reports whether the service definitively rejected the request
func IsPermanent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusTooManyRequests
}

// IsContentTooSmall reports whether a create-cache call was rejected because
// the context is below the service's minimum cacheable token count.
func IsContentTooSmall(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == "MIN_TOKEN_COUNT" {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "too small") || strings.Contains(msg, "min_total_token_count")
}
