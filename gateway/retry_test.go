package gateway

import (
	"testing"
	"time"
)

func TestBackoffDurationGrowsAndCaps(t *testing.T) {
	rc := RetryConfig{
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        30 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	if got := rc.backoffDuration(1); got != 10*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 10ms", got)
	}
	if got := rc.backoffDuration(2); got != 20*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 20ms", got)
	}
	if got := rc.backoffDuration(3); got != 30*time.Millisecond {
		t.Fatalf("attempt 3 = %v, want capped 30ms", got)
	}
}
