// Package status implements the daemon's 32-byte fixed-layout status file:
// a zero-dependency-readable summary of system-level package counts for
// shell prompts and minimal companion binaries.
//
// # Layout
//
// See spec §3 for the authoritative byte layout; in short: a 4-byte magic
// ("OMGS"), a 4-byte schema version, four 4-byte counters, and 8 reserved
// zero bytes, all little-endian.
//
// # Atomicity
//
// Write never mutates the target path in place: it writes to a temporary
// file in the same directory, then renames over the target. Within one
// filesystem, rename is atomic, so a concurrent reader either sees the
// complete previous file or the complete new one, never a torn mix.
package status
