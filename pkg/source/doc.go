// Package source adapts an HTTP post feed to the acquisition engine.
//
// The client speaks to a paginated JSON endpoint and maps HTTP
// failures onto the engine's error taxonomy, so the retry policy and
// circuit breaker can tell a throttled response from a dead tag
// without knowing anything about HTTP.
package source
