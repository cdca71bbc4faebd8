package gateway

import "time"

// RetryConfig configures the gateway client's capped exponential backoff
// for retryable (network or 5xx) request failures. Mirrors
// storage.RetryConfig / p2p/req_resp.go's RetryConfig shape.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the gateway client's default retry schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// backoffDuration computes the backoff duration before the given attempt
// (1-indexed: attempt 1 is the first retry after the initial try).
func (rc RetryConfig) backoffDuration(attempt int) time.Duration {
	d := float64(rc.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= rc.BackoffMultiplier
		if time.Duration(d) > rc.MaxBackoff {
			return rc.MaxBackoff
		}
	}
	result := time.Duration(d)
	if result > rc.MaxBackoff {
		return rc.MaxBackoff
	}
	return result
}
