package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyError implements Transient and fails a fixed number of times before
// succeeding, to exercise RetryingAdapter's backoff loop.
type flakyError struct{ temporary bool }

func (e flakyError) Error() string   { return "storage: flaky transient failure" }
func (e flakyError) Temporary() bool { return e.temporary }

type flakyAdapter struct {
	Adapter
	failuresLeft int
}

func (f *flakyAdapter) Get(ctx context.Context, key []byte) ([]byte, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, flakyError{temporary: true}
	}
	return f.Adapter.Get(ctx, key)
}

func TestRetryingAdapterRetriesTransientFailures(t *testing.T) {
	mem := NewMemoryAdapter()
	ctx := context.Background()
	mem.Set(ctx, []byte("fact:a"), []byte("value"))

	flaky := &flakyAdapter{Adapter: mem, failuresLeft: 2}
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffMultiplier: 2}
	r := NewRetryingAdapter(flaky, cfg)

	v, err := r.Get(ctx, []byte("fact:a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "value" {
		t.Fatalf("Get = %q, want %q", v, "value")
	}
}

func TestRetryingAdapterExhaustsBudget(t *testing.T) {
	mem := NewMemoryAdapter()
	flaky := &flakyAdapter{Adapter: mem, failuresLeft: 100}
	cfg := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
	r := NewRetryingAdapter(flaky, cfg)

	_, err := r.Get(context.Background(), []byte("fact:a"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get after exhausting retries = %v, want ErrUnavailable", err)
	}
}

func TestRetryingAdapterDoesNotRetryNonTransient(t *testing.T) {
	mem := NewMemoryAdapter()
	r := NewRetryingAdapter(mem, DefaultRetryConfig())

	_, err := r.Get(context.Background(), []byte("fact:missing"))
	if err != ErrNotFound {
		t.Fatalf("Get on missing key = %v, want ErrNotFound (no retry)", err)
	}
}

func TestBackoffDurationGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 30 * time.Millisecond, BackoffMultiplier: 2}
	if d := cfg.backoffDuration(1); d != 10*time.Millisecond {
		t.Fatalf("backoffDuration(1) = %v, want 10ms", d)
	}
	if d := cfg.backoffDuration(2); d != 20*time.Millisecond {
		t.Fatalf("backoffDuration(2) = %v, want 20ms", d)
	}
	if d := cfg.backoffDuration(3); d != 30*time.Millisecond {
		t.Fatalf("backoffDuration(3) = %v, want 30ms (capped)", d)
	}
}
