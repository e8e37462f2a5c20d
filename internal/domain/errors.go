package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by the public API. Check with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running publisher.
	ErrAlreadyRunning = errors.New("pubship: already running")

	// ErrNotRunning is returned when Publish() or Shutdown() is called before Start().
	ErrNotRunning = errors.New("pubship: not running")

	// ErrPublisherClosed is returned by Publish() once shutdown has begun.
	ErrPublisherClosed = errors.New("pubship: publisher closed")

	// ErrShutdownTimeout is returned when the drain exceeds the caller's deadline.
	ErrShutdownTimeout = errors.New("pubship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pubship: invalid configuration")
)

// RetryableError marks a transport failure as transient. The dispatcher
// re-sends the batch with backoff until the retry budget is spent; any
// other error is treated as fatal and the batch is dropped immediately.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return "pubship: retryable: " + e.Err.Error()
}

// Unwrap returns the underlying transport error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// MarkRetryable wraps err so IsRetryable reports true. A nil err stays nil.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was marked retryable by a transport.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// DroppedError reports messages lost to retry exhaustion or fatal transport
// failures, aggregated over the lifetime of the publisher. It is returned
// by Shutdown when the count is non-zero.
type DroppedError struct {
	Messages int
}

// Error implements the error interface.
func (e *DroppedError) Error() string {
	return fmt.Sprintf("pubship: %d message(s) dropped", e.Messages)
}
