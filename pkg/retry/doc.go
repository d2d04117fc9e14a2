// Package retry wraps fallible operations with bounded retries and
// exponential backoff.
//
// Acquisition fetches are read-only, so blind retry is safe; the retry
// predicate consults the error taxonomy in pkg/errors so fatal failures
// (auth lost, target missing) propagate immediately instead of burning
// attempts.
//
// Backoff delays are jittered to avoid synchronized retry storms when
// several sessions fail at the same moment.
//
// Usage:
//
//	cfg := retry.DefaultConfig()
//	cfg.MaxAttempts = 5
//
//	err := retry.Do(func() error {
//	    return fetchNextBatch()
//	}, cfg)
//
//	batch, err := retry.DoWithResult(func() (*Batch, error) {
//	    return fetcher.FetchBatch(ctx, target, cursor)
//	}, cfg)
package retry
