// Package breaker implements a circuit breaker for the acquisition
// source.
//
// When the source fails persistently (sustained throttling, outage,
// dead session) there is no point paying retry backoff for every call.
// The breaker counts consecutive failures and, past a threshold, fails
// fast without invoking the operation at all. After a recovery timeout
// a single trial call is let through; its outcome decides whether the
// circuit closes again or re-opens.
//
// One breaker instance is shared by every session hitting the same
// source, since "the source is unhealthy" is a global signal, so all
// methods are safe for concurrent use.
package breaker
