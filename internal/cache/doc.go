// Package cache implements the daemon's bounded, per-entry-TTL result
// cache and the typed Store built on top of it for the five key classes
// named in the data model: search results, package info, negative info
// misses, the status snapshot, and the explicit-package count.
//
// # Sharing
//
// Go's garbage collector already gives cached values reference-counted-like
// sharing for free: Store returns the same backing value to every caller
// without cloning, and callers must treat it as read-only. There is no
// separate "insert_shared" code path because ordinary Insert is already
// zero-copy in Go; Store documents this rather than adding a redundant API.
//
// # Invariants
//
// PutInfo and RecordMiss are mutually exclusive for a given package name:
// PutInfo atomically removes any existing negative-miss entry for the same
// name under the same critical section as its own insert, so readers never
// observe both "info:n" and "info-miss:n" present at once.
//
// # Concurrency
//
// A Cache is split into 16 shards, each with its own mutex, LRU list, and
// share of the total capacity; a key's shard is chosen by hashing it.
// Operations on different shards never contend; reads and writes (insert,
// evict, invalidate) on the same shard serialize on that shard's mutex.
// Eviction is least-recently-used within a shard, not across the whole
// Cache, so an entry can be evicted while the total is below capacity.
package cache
