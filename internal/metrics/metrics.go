package metrics

import "sync/atomic"

// Snapshot is a value-type copy of the registry's counters at the moment
// Snapshot() was called. It shares no storage with the live Registry.
type Snapshot struct {
	RequestsTotal         uint64
	RequestsFailed        uint64
	RateLimitHits         uint64
	ValidationFailures    uint64
	SecurityAuditRequests uint64
	BytesReceived         uint64
	BytesSent             uint64
	ActiveConnections     int64
}

// Registry holds the daemon's process-wide atomic counters and gauge.
// The zero value is ready to use; prefer Global() to obtain the one
// process-wide instance.
type Registry struct {
	requestsTotal         atomic.Uint64
	requestsFailed        atomic.Uint64
	rateLimitHits         atomic.Uint64
	validationFailures    atomic.Uint64
	securityAuditRequests atomic.Uint64
	bytesReceived         atomic.Uint64
	bytesSent             atomic.Uint64
	activeConnections     atomic.Int64
}

var global = New()

// Global returns the single process-wide Registry. Its lifetime equals the
// process's; it is never reset.
func Global() *Registry { return global }

// New constructs an independent Registry, useful for isolated tests.
func New() *Registry { return &Registry{} }

func (r *Registry) IncRequestsTotal()         { r.requestsTotal.Add(1) }
func (r *Registry) IncRequestsFailed()        { r.requestsFailed.Add(1) }
func (r *Registry) IncRateLimitHits()         { r.rateLimitHits.Add(1) }
func (r *Registry) IncValidationFailures()    { r.validationFailures.Add(1) }
func (r *Registry) IncSecurityAuditRequests() { r.securityAuditRequests.Add(1) }
func (r *Registry) AddBytesReceived(n uint64) { r.bytesReceived.Add(n) }
func (r *Registry) AddBytesSent(n uint64)     { r.bytesSent.Add(n) }
func (r *Registry) IncActiveConnections()     { r.activeConnections.Add(1) }
func (r *Registry) DecActiveConnections()     { r.activeConnections.Add(-1) }

// Snapshot takes an independent, relaxed-ordering read of every counter.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		RequestsTotal:         r.requestsTotal.Load(),
		RequestsFailed:        r.requestsFailed.Load(),
		RateLimitHits:         r.rateLimitHits.Load(),
		ValidationFailures:    r.validationFailures.Load(),
		SecurityAuditRequests: r.securityAuditRequests.Load(),
		BytesReceived:         r.bytesReceived.Load(),
		BytesSent:             r.bytesSent.Load(),
		ActiveConnections:     r.activeConnections.Load(),
	}
}
