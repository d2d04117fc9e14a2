// Package store persists collected posts across runs.
//
// The durable record is two JSON files under one data directory:
// posts.json holds every accepted post in first-seen order, and
// metadata.json holds per-target statistics plus a history of merge
// sessions. Both are replaced atomically (temp file, fsync, rename),
// so a crash mid-write leaves the previous record intact.
//
// Merge is the single write path. It re-reads the durable record,
// folds a run's posts in with first-seen-wins deduplication against
// the global identity set, and persists the result under a mutex. A
// failed write discards the in-memory merge; callers can retry with
// the same post set because merging is idempotent.
package store
