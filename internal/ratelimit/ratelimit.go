// Package ratelimit provides the token-bucket admission control the
// Processing Policy applies before every engine batch call (spec
// §4.6). Rate limiting is optional: Disabled returns a null-object
// limiter whose Acquire returns immediately, failing only when ctx is
// already cancelled.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"transhub/internal/logger"
)

// Limiter is the contract the Processing Policy depends on.
type Limiter interface {
	// Acquire blocks until n tokens are available or ctx is cancelled.
	// A TokenBucket fails immediately when n exceeds its capacity.
	Acquire(ctx context.Context, n int) error
	// SetLimit updates capacity/refill rate dynamically.
	SetLimit(refillRate float64, capacity int)
}

// TokenBucket wraps golang.org/x/time/rate behind the spec's
// acquire(n)/capacity/refill_rate vocabulary.
type TokenBucket struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// New builds a TokenBucket with the given capacity and refill rate
// (tokens/second). A non-positive capacity disables bursting beyond 1.
func New(refillRate float64, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(refillRate), capacity)}
}

// Acquire blocks cooperatively until n tokens are available. It
// returns an error at once when n exceeds the capacity, or when ctx is
// cancelled or its deadline comes before the tokens would.
func (t *TokenBucket) Acquire(ctx context.Context, n int) error {
	t.mu.RLock()
	limiter := t.limiter
	t.mu.RUnlock()
	return limiter.WaitN(ctx, n)
}

// SetLimit updates capacity/refill rate dynamically (spec §5's "shared
// across all workers" limiter being reconfigurable at runtime).
func (t *TokenBucket) SetLimit(refillRate float64, capacity int) {
	if capacity <= 0 {
		capacity = 1
	}
	t.mu.Lock()
	t.limiter.SetLimit(rate.Limit(refillRate))
	t.limiter.SetBurst(capacity)
	t.mu.Unlock()
	logger.Info("rate limiter updated", "module", "ratelimit", "action", "update", "resource", "limiter", "result", "ok",
		"refill_rate", refillRate, "capacity", capacity)
}

// nullLimiter is installed when rate limiting is unconfigured
// (spec §4.6's "optional, null-object when unconfigured").
type nullLimiter struct{}

// Disabled returns the null-object Limiter used when no rate limiter
// configuration is present.
func Disabled() Limiter { return nullLimiter{} }

func (nullLimiter) Acquire(ctx context.Context, n int) error { return ctx.Err() }
func (nullLimiter) SetLimit(float64, int)                    {}
