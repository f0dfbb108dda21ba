package domain

import (
	"errors"
	"time"
)

// Common domain errors
var (
	ErrNotFound      = errors.New("not found")
	ErrExpired       = errors.New("share link has expired")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidToken  = errors.New("invalid share token format")
	ErrFileTooLarge  = errors.New("file exceeds maximum local copy size")
	ErrAlreadyExists = errors.New("already exists")

	// Credential errors
	ErrAuthExchange      = errors.New("authorization exchange failed")
	ErrNotConnected      = errors.New("remote storage is not connected")
	ErrCredentialExpired = errors.New("remote storage credential expired, reconnect required")

	// Provider errors
	ErrProviderUnavailable = errors.New("remote storage provider unavailable")
	ErrFileNotAccessible   = errors.New("file is not accessible")
)

// RetryableError represents a transient failure the caller may retry.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

// NeedsReconnect reports whether the error can only be cleared by the user
// authorizing the remote storage again.
func NeedsReconnect(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrCredentialExpired)
}
