// Package validate holds pure, side-effect-free input validation used by the
// daemon's request dispatcher before any handler touches the filesystem,
// spawns a subprocess, or consults the backend.
//
// # Overview
//
// Every exported Validate* function takes a raw string and returns a non-nil
// error describing the first rule violated, or nil. None of them perform I/O;
// all of them are safe to call from any goroutine without synchronization.
//
// # Rule Sets
//
//   - ValidatePackageName uses the strict OS-identifier character class
//     [A-Za-z0-9._+-] and rejects leading "-" (option injection), leading "."
//     (hidden files), and any ".." component (path traversal).
//   - ValidateScopedPackageName relaxes the character class to
//     [A-Za-z0-9._+\-@/] for ecosystems (npm) that use scoped names; the same
//     structural rejections (leading "-", leading ".", "..") still apply.
//   - ValidateVersion accepts the looser version character class
//     [A-Za-z0-9.\-+:~].
//   - ValidateRelativePath rejects absolute paths, NUL bytes, "..", and "//".
//
// # Fingerprinting
//
// Callers that need to record a validation failure in the audit log must
// never persist the offending value verbatim (log poisoning). Fingerprint
// computes a short, non-reversible digest suitable for correlating repeated
// failures without exposing the input.
package validate
