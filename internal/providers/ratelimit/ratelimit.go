// Package ratelimit throttles requests against remote document APIs.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter combines a token bucket with a backoff window set from
// Retry-After responses, so a backend that starts returning 429s is left
// alone until it asked to be called again.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a limiter allowing requestsPerSecond sustained with the given
// burst.
func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a request may be made. It honours both the token bucket
// and any backoff window recorded from a 429 response.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if until := time.Until(retryAt); until > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(until):
		}
	}

	return l.limiter.Wait(ctx)
}

// RecordRetryAfter opens a backoff window after a 429 response.
// retryAfterSeconds of zero or less falls back to 30 seconds.
func (l *Limiter) RecordRetryAfter(retryAfterSeconds int) {
	if retryAfterSeconds <= 0 {
		retryAfterSeconds = 30
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}
