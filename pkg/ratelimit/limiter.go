package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Acquire blocks until one unit of capacity is available, then
	// consumes it. It returns early only if the context is cancelled.
	Acquire(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// Stats is a snapshot of a limiter's internal state
type Stats struct {
	Rate     float64 // tokens per second
	Capacity float64
	Tokens   float64
}

// TokenBucket implements a token bucket rate limiter with continuous
// fractional refill
type TokenBucket struct {
	rate       float64 // tokens added per second
	capacity   float64 // maximum tokens (burst size)
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex

	now func() time.Time // injectable for tests
}

// NewTokenBucket creates a new token bucket rate limiter. The bucket
// starts full, so the first `capacity` acquisitions do not wait.
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	tb := &TokenBucket{
		rate:     rate,
		capacity: float64(capacity),
		tokens:   float64(capacity),
		now:      time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// Acquire blocks until a token is available, then consumes it
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		// Not enough tokens: wait for the deficit to refill. The lock is
		// released during the sleep so concurrent acquirers serialize on
		// the re-check, not on the wait.
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reset refills the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// Stats returns a snapshot of the bucket state
func (tb *TokenBucket) Stats() Stats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return Stats{
		Rate:     tb.rate,
		Capacity: tb.capacity,
		Tokens:   tb.tokens,
	}
}

// setRate adjusts the refill rate and capacity. Tokens above the new
// capacity are discarded. Callers must not hold the mutex.
func (tb *TokenBucket) setRate(rate, capacity float64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.rate = rate
	tb.capacity = capacity
	if tb.tokens > capacity {
		tb.tokens = capacity
	}
}

// refill adds tokens based on elapsed time. Callers must hold the mutex.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
