// Package config resolves omgd's runtime configuration from environment
// variables and command-line flags, following the precedence and defaults
// laid out in the spec's deployment section: flags override environment,
// environment overrides the built-in fallback.
//
// Paths are resolved once at startup (via RegisterFlags in the daemon
// binary, or Load where no flags are parsed) and passed down explicitly;
// nothing in this package is read from global state after that point.
package config
