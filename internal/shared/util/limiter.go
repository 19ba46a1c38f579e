package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles regeneration runs with a token bucket.
type Limiter struct {
	inner *rate.Limiter
}

// NewIntervalLimiter allows one event per interval after an initial burst.
// A non-positive interval never throttles.
func NewIntervalLimiter(interval time.Duration, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		return &Limiter{inner: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{inner: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether n events may happen now, consuming tokens if so.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until one event may happen or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
