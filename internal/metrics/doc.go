// Package metrics implements the daemon's process-wide metrics registry.
//
// # Overview
//
// Registry holds a fixed set of monotonic counters and one signed gauge,
// all backed by sync/atomic. There is exactly one Registry per process,
// obtained via Global(); it never needs to be threaded through the call
// graph. Snapshot() produces a plain value type that shares no storage with
// the live counters, so readers can retain it indefinitely.
//
// # Consistency
//
// Each field is updated independently with relaxed-ordering atomic
// operations, in the style of a Prometheus client: a Snapshot makes no
// promise that its fields were all read at the same instant. Monotonic
// counters only increase; ActiveConnections may decrease, but only by the
// connection goroutine that owns the corresponding increment.
package metrics
