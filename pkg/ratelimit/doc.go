// Package ratelimit throttles outbound acquisition requests.
//
// The source throttles aggressively, so the collection loop must never
// exceed a safe sustained rate while still being allowed short bursts.
//
// Available Implementations:
//
// Token Bucket:
//   - Tokens accrue continuously (fractionally) at a steady rate up to
//     a fixed capacity; each request consumes one token
//   - Permits bursts up to the capacity, then smooths to the steady rate
//   - Acquire never fails, it only delays (or returns on context cancel)
//
// Adaptive Limiter:
//   - Wraps a token bucket and reacts to feedback from the source
//   - OnThrottle halves the rate (down to a floor) as soon as the source
//     signals rate limiting
//   - OnSuccess slowly recovers the rate (up to a ceiling) after a streak
//     of successful requests, so the rate does not oscillate
//
// Usage:
//
//	limiter := ratelimit.NewTokenBucket(10.0, 20)
//
//	if err := limiter.Acquire(ctx); err != nil {
//	    return err // context cancelled
//	}
//	// Proceed with request
package ratelimit
