package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns the wait before retry number attempt (1-based), doubling
// from the base delay: base, base*2, base*4, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
}

// Jitter scales d by a uniform factor in [1-fraction, 1+fraction].
func Jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	factor := 1 + (rand.Float64()*2-1)*fraction
	return time.Duration(float64(d) * factor)
}

// Sleep waits for d or until ctx is done, whichever comes first. Returns
// ctx.Err() when cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
