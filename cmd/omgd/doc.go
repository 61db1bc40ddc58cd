// Command omgd runs the package-query daemon.
//
// Usage:
//
//	omgd -socket $XDG_RUNTIME_DIR/omg.sock -data-dir ~/.local/share/omg
//
// Flags mirror the environment variables documented in internal/config;
// flags take precedence over the environment, which takes precedence over
// the built-in fallback paths.
//
// Behavior:
//
// Builds the backend, index, cache, limiter, and audit log, binds the
// Unix domain socket, and blocks on SIGINT/SIGTERM for graceful shutdown.
// The binary intentionally avoids daemonizing itself; packaging as a
// systemd unit is recommended for persistence.
package main
