package ratelimit

import (
	"context"
	"sync"
)

// FeedbackLimiter is a Limiter that accepts throttle/success feedback
// from the acquisition loop.
type FeedbackLimiter interface {
	Limiter
	OnThrottle()
	OnSuccess()
}

// AdaptiveConfig configures an AdaptiveLimiter.
type AdaptiveConfig struct {
	InitialRate       float64 // starting tokens per second
	MinRate           float64 // floor after backoff
	MaxRate           float64 // ceiling after recovery
	BackoffFactor     float64 // rate multiplier on throttle signal (e.g. 0.5)
	RecoveryFactor    float64 // rate multiplier after a success streak (e.g. 1.1)
	RecoveryThreshold int     // consecutive successes before recovery
}

// AdaptiveLimiter adjusts its rate based on observed throttling. It
// backs off fast on evidence of throttling and recovers slowly after a
// streak of successes, so the rate does not oscillate around the
// source's limit.
type AdaptiveLimiter struct {
	bucket *TokenBucket
	cfg    AdaptiveConfig

	mu                   sync.Mutex
	currentRate          float64
	consecutiveSuccesses int
	consecutiveThrottles int
}

// NewAdaptiveLimiter creates an adaptive limiter. Capacity tracks the
// rate (2x) so bursts scale down with the backoff.
func NewAdaptiveLimiter(cfg AdaptiveConfig) *AdaptiveLimiter {
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = 20
	}
	return &AdaptiveLimiter{
		bucket:      NewTokenBucket(cfg.InitialRate, int(capacityFor(cfg.InitialRate))),
		cfg:         cfg,
		currentRate: cfg.InitialRate,
	}
}

// capacityFor derives the bucket capacity from a rate. The floor of
// one token keeps Acquire satisfiable at rates below 0.5 tokens/sec,
// where 2x the rate would leave the bucket unable to hold a full token.
func capacityFor(rate float64) float64 {
	capacity := rate * 2
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}

// Acquire blocks until the underlying bucket grants a token
func (al *AdaptiveLimiter) Acquire(ctx context.Context) error {
	return al.bucket.Acquire(ctx)
}

// Reset refills the underlying bucket
func (al *AdaptiveLimiter) Reset() {
	al.bucket.Reset()
}

// OnThrottle is called when the source signals rate limiting. The rate
// drops immediately and the success streak restarts.
func (al *AdaptiveLimiter) OnThrottle() {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.consecutiveThrottles++
	al.consecutiveSuccesses = 0

	newRate := al.currentRate * al.cfg.BackoffFactor
	if newRate < al.cfg.MinRate {
		newRate = al.cfg.MinRate
	}
	if newRate != al.currentRate {
		al.currentRate = newRate
		al.bucket.setRate(newRate, capacityFor(newRate))
	}
}

// OnSuccess is called after each successful request. After
// RecoveryThreshold consecutive successes the rate is nudged back up.
func (al *AdaptiveLimiter) OnSuccess() {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.consecutiveThrottles = 0
	al.consecutiveSuccesses++
	if al.consecutiveSuccesses < al.cfg.RecoveryThreshold {
		return
	}
	al.consecutiveSuccesses = 0

	newRate := al.currentRate * al.cfg.RecoveryFactor
	if newRate > al.cfg.MaxRate {
		newRate = al.cfg.MaxRate
	}
	if newRate != al.currentRate {
		al.currentRate = newRate
		al.bucket.setRate(newRate, capacityFor(newRate))
	}
}

// CurrentRate returns the current refill rate in tokens per second
func (al *AdaptiveLimiter) CurrentRate() float64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.currentRate
}

// Stats returns a snapshot of the underlying bucket state
func (al *AdaptiveLimiter) Stats() Stats {
	return al.bucket.Stats()
}
