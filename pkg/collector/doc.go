// Package collector accumulates posts while filtering duplicates.
//
// Paginated sources re-serve items freely: overlapping pages, refreshed
// feeds, re-runs over an existing archive. The collector keeps a set of
// seen post IDs so membership checks stay constant time regardless of
// how many posts have been gathered, and preserves first-seen order for
// everything it accepts.
//
// Seed loads IDs from a previous run so that re-collecting a target
// only pays for genuinely new posts.
package collector
