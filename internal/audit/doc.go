// Package audit implements the daemon's tamper-evident, append-only
// security audit log.
//
// # Format
//
// The log is a JSON-lines file, one Entry per line. Each entry's SelfHash
// covers the sequence number, timestamp, kind, message, and the previous
// entry's SelfHash (ParentHash), forming a hash chain: entry[i].ParentHash
// equals entry[i-1].SelfHash, and entry[0].ParentHash is the zero hash.
// Verify walks the file and recomputes every hash, returning the index of
// the first break, or success.
//
// # Concurrency
//
// All appends are serialized through a single mutex; this is the only
// blocking I/O path in the audit subsystem and callers on other subsystems
// must never hold a lock while appending.
//
// # Failure Policy
//
// A write failure is retried with bounded exponential backoff. Once the
// attempt budget is exhausted the Logger enters degraded mode: Append
// returns ErrDegraded to the caller (which the dispatcher surfaces as
// DEGRADED for privileged request kinds while continuing to serve reads),
// and every subsequent Append attempt is retried lazily until the
// underlying filesystem recovers, at which point the logger appends one
// recovery entry and clears degraded mode.
package audit
