// Package storage provides the key-value abstraction the rest of the
// committee node is built on: opaque byte keys, five operations, and a
// retry wrapper for transient faults. Namespacing (fact:, root:,
// cursor:, submitted: prefixes) is the caller's responsibility -- the
// adapter itself knows nothing about what a key means.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNotFound is returned by Get and MultiGet for missing keys.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable is returned once the retry budget for an operation is
	// exhausted; the caller should treat the backing store as down.
	ErrUnavailable = errors.New("storage: backing store unavailable")
	// ErrCASMismatch is returned by CompareAndSet when the stored value does
	// not match the expected value.
	ErrCASMismatch = errors.New("storage: compare-and-set expected value mismatch")
)

// Adapter is the key-value capability every component above it depends on.
// All operations are idempotent for the caller: retrying a failed Set or
// MultiSet after a transient error is always safe.
type Adapter interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// MultiGet returns a map of key -> value for every key that exists.
	// Keys with no stored value are simply absent from the result, not an
	// error.
	MultiGet(ctx context.Context, keys [][]byte) (map[string][]byte, error)
	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value []byte) error
	// MultiSet stores every entry in kvs as a single logical write.
	MultiSet(ctx context.Context, kvs map[string][]byte) error
	// CompareAndSet stores newValue under key only if the currently stored
	// value equals expected (nil expected means "key must not exist").
	// Returns ErrCASMismatch if the precondition does not hold.
	CompareAndSet(ctx context.Context, key, expected, newValue []byte) error
}

// RetryConfig configures timeout and exponential backoff retry behavior for
// transient storage faults (timeouts, connection resets).
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff growth.
	MaxBackoff time.Duration
	// BackoffMultiplier scales the backoff between retries.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// backoffDuration computes the backoff duration before the given retry
// attempt (attempt is 1-indexed: the delay before the first retry).
func (rc RetryConfig) backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return rc.InitialBackoff
	}
	backoff := float64(rc.InitialBackoff) * math.Pow(rc.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(rc.MaxBackoff) {
		backoff = float64(rc.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Transient is the interface an Adapter's errors may implement to mark
// themselves as retryable. Errors that do not implement it (ErrNotFound,
// ErrCASMismatch) are never retried.
type Transient interface {
	Temporary() bool
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t Transient
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}

// RetryingAdapter wraps an Adapter, retrying operations that fail with a
// transient error up to cfg.MaxRetries times with capped exponential
// backoff between attempts.
type RetryingAdapter struct {
	inner Adapter
	cfg   RetryConfig
}

// NewRetryingAdapter wraps inner with retry behavior per cfg.
func NewRetryingAdapter(inner Adapter, cfg RetryConfig) *RetryingAdapter {
	return &RetryingAdapter{inner: inner, cfg: cfg}
}

func (r *RetryingAdapter) retry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.backoffDuration(attempt)):
			}
		}
		lastErr = op()
		if lastErr == nil || !IsTransient(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (r *RetryingAdapter) Get(ctx context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := r.retry(ctx, func() error {
		v, err := r.inner.Get(ctx, key)
		out = v
		return err
	})
	return out, err
}

func (r *RetryingAdapter) MultiGet(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	var out map[string][]byte
	err := r.retry(ctx, func() error {
		v, err := r.inner.MultiGet(ctx, keys)
		out = v
		return err
	})
	return out, err
}

func (r *RetryingAdapter) Set(ctx context.Context, key, value []byte) error {
	return r.retry(ctx, func() error { return r.inner.Set(ctx, key, value) })
}

func (r *RetryingAdapter) MultiSet(ctx context.Context, kvs map[string][]byte) error {
	return r.retry(ctx, func() error { return r.inner.MultiSet(ctx, kvs) })
}

func (r *RetryingAdapter) CompareAndSet(ctx context.Context, key, expected, newValue []byte) error {
	return r.retry(ctx, func() error { return r.inner.CompareAndSet(ctx, key, expected, newValue) })
}

// equalValue reports whether two possibly-nil byte slices are equal,
// treating a nil slice as "key absent" for CompareAndSet preconditions.
func equalValue(a, b []byte) bool {
	return bytes.Equal(a, b)
}
