// Package daemon wires the core subsystems — validation, metrics, audit,
// backend, index, cache, and rate limiting — into the request dispatch
// pipeline and the connection/listener lifecycle that serves it.
//
// # Pipeline
//
// Dispatcher.Dispatch implements the per-request pipeline: count the
// request, spend a rate-limit token, validate shape-specific input, route
// to the matching handler, and report the outcome through metrics and,
// for policy violations, the audit log.
//
// # Connections
//
// Supervisor accepts connections on a Unix domain socket and runs each one
// through a small state machine (accepting a frame, dispatching it,
// writing the response, repeat) until EOF or a protocol-fatal error.
package daemon
