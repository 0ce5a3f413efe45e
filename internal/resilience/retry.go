package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is expressed as a fraction (e.g. 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(delta)
}

// Retry runs fn up to attempts times, sleeping an exponential backoff between
// tries. It stops early when the context is done. Only operations that are
// safe to repeat should be retried.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(base, attempt, 0.2)):
		}
	}
	return err
}
