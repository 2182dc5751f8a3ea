// Package ratelimit provides per-key request rate limiting with in-memory
// and Redis-backed implementations.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow checks whether a single request is allowed for the given key.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the limiter.
	Close() error
}

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long to wait before retrying, when not allowed.
	RetryAfter time.Duration
}

// Config holds the limits applied per key.
type Config struct {
	// Requests is the sustained number of requests allowed per Window.
	Requests int

	// Window is the accounting period.
	Window time.Duration

	// Burst is the number of requests that may exceed the sustained rate
	// momentarily. Zero means no extra burst beyond Requests.
	Burst int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Requests: 100,
		Window:   time.Minute,
		Burst:    10,
	}
}

// NoopLimiter allows every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never rejects.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(ctx context.Context, key string) error {
	return nil
}

// Close implements Limiter.
func (l *NoopLimiter) Close() error {
	return nil
}
