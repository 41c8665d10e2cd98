// Package retry classifies provider failures and offers a bounded backoff loop
// for single-provider adapters. Fallback chains never use Do: a provider that
// failed once is not called again within the same chain run.
package retry

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// RetryableError indicates a failure another provider (or a later attempt) may not hit
type RetryableError struct {
	Err        error
	StatusCode int
	Body       string
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// QuotaError indicates the credential shared by a group of providers is exhausted.
// Every provider in the same group will fail the same way until the quota resets.
type QuotaError struct {
	Err        error
	StatusCode int
	Group      string
}

func (e *QuotaError) Error() string {
	return e.Err.Error()
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// IsQuota reports whether err is a quota exhaustion and returns its credential group
func IsQuota(err error) (string, bool) {
	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		return quotaErr.Group, true
	}
	return "", false
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as final: no other provider should be tried
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent checks if an error was marked with Permanent
func IsPermanent(err error) bool {
	var permErr *permanentError
	return errors.As(err, &permErr)
}

// FromStatus wraps a failed HTTP exchange as a RetryableError
func FromStatus(err error, statusCode int, body string) error {
	return &RetryableError{Err: err, StatusCode: statusCode, Body: body}
}

// TransientStatus reports whether an HTTP status is worth repeating against the same host
func TransientStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// Config holds retry configuration
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// Do executes the operation with exponential backoff retry
func Do(ctx context.Context, config *Config, operation func() error) error {
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) || IsPermanent(err) {
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		backoff := calculateBackoff(config, attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

func calculateBackoff(config *Config, attempt int) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.Multiplier, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}
