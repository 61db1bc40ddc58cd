// Package ratelimit implements the daemon's process-wide token-bucket rate
// limiter: capacity 200 tokens, refill 100 tokens/second, steady state.
//
// # Peer identifier
//
// Allow accepts an opaque peer identifier so the interface can grow a
// per-peer dimension later without a breaking change, but this
// implementation enforces one global bucket regardless of peer — the spec
// leaves per-peer limiting an open question and instructs implementers not
// to guess at it.
//
// # Non-blocking
//
// Allow never suspends: it is a bounded, constant-time read-modify-write
// guarded by a mutex held only across the refill-and-decrement arithmetic,
// matching the "acquiring a rate-limit token is never a suspension point"
// rule in the concurrency model.
package ratelimit
