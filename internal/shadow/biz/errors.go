package biz

import (
	"context"
	"errors"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
)

var (
	// ErrNotFound means the requested shadow record does not exist.
	ErrNotFound = errors.New("shadow: resource not found")

	// ErrStoreUnavailable means the persistent store could not serve the
	// request; callers must not assume partial writes succeeded.
	ErrStoreUnavailable = errors.New("shadow: store unavailable")

	// ErrPermissionDenied means the caller does not own the resource.
	ErrPermissionDenied = errors.New("shadow: permission denied")

	// ErrIngestFailed means a file reached the failed state; the record
	// carries the reason and may be explicitly retried.
	ErrIngestFailed = errors.New("shadow: file ingestion failed")

	// ErrCacheBuildFailed means the external cache could not be built.
	// Non-fatal to the caller: proceed uncached or fail the request.
	ErrCacheBuildFailed = errors.New("shadow: cache build failed")

	// ErrContentTooSmall means the workspace context is below the external
	// service's minimum cacheable size; callers proceed uncached.
	ErrContentTooSmall = errors.New("shadow: content too small to cache")
)

// retryTransient runs fn up to maxAttempts times with doubling delays.
// Permanent rejections abort immediately; context cancellation wins over
// the backoff sleep.
func retryTransient(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if gemini.IsPermanent(err) {
			return err
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		delay := baseDelay << attempt
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
