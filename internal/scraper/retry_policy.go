package scraper

import (
	"context"
	"errors"
	"time"
)

// DefaultBackoffUnit is the base of the exponential backoff.
const DefaultBackoffUnit = time.Second

// RetryPolicy bounds fetch attempts and computes the wait between them.
// MaxAttempts counts the first try; attempts are numbered from 1.
type RetryPolicy struct {
	MaxAttempts int
	Unit        time.Duration
}

// NewRetryPolicy builds a policy, clamping nonsensical input.
func NewRetryPolicy(maxAttempts int, unit time.Duration) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if unit <= 0 {
		unit = DefaultBackoffUnit
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Unit: unit}
}

// ShouldRetry reports whether a failed attempt may be followed by another.
// Context errors and auth walls are final.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrAuthRequired)
}

// Backoff returns Unit * 2^attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	return p.Unit * time.Duration(1<<attempt)
}
