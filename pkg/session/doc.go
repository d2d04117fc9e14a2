// Package session runs the per-target acquisition state machine.
//
// A session repeatedly fetches batches from a source until one of its
// termination conditions fires: the requested count is reached, the
// source stops yielding anything new, or an unrecoverable error ends
// the run. Each batch passes through the rate limiter, the circuit
// breaker and the retry policy before its posts reach the collector,
// so transient failures are absorbed here and callers only see
// terminal outcomes.
//
// Stall detection uses two independent counters. The no-new counter
// tracks consecutive batches that contained zero unseen posts; the
// no-growth counter tracks consecutive batches where the source's
// reported extent did not advance. Either one crossing its threshold
// means the source is exhausted for this target.
package session
