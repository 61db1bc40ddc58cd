package protocol

import (
	"github.com/omgd/omgd/internal/backend"
	"github.com/omgd/omgd/internal/metrics"
)

// RequestType tags which shape a Request carries.
type RequestType string

const (
	TypePing          RequestType = "ping"
	TypeSearch        RequestType = "search"
	TypeDebianSearch  RequestType = "debian_search"
	TypeArchSearch    RequestType = "arch_search"
	TypeInfo          RequestType = "info"
	TypeSuggest       RequestType = "suggest"
	TypeStatus        RequestType = "status"
	TypeExplicit      RequestType = "explicit"
	TypeUpdates       RequestType = "updates"
	TypeMetrics       RequestType = "metrics"
	TypeSecurityAudit RequestType = "security_audit"
	TypeBatch         RequestType = "batch"
)

// ErrorCode enumerates the stable wire error codes from the spec.
type ErrorCode uint16

const (
	CodeInvalidInput ErrorCode = 1
	CodeNotFound     ErrorCode = 2
	CodeRateLimited  ErrorCode = 3
	CodeTimeout      ErrorCode = 4
	CodeInternal     ErrorCode = 5
	CodeProtocol     ErrorCode = 6
	CodeDegraded     ErrorCode = 7
)

// Request is the tagged union of everything a client can ask. Only the
// fields relevant to Type are populated; the rest are left at their zero
// value and omitted on the wire.
type Request struct {
	ID    uint64      `msgpack:"id"`
	Type  RequestType `msgpack:"type"`
	Query string      `msgpack:"query,omitempty"`
	Limit int         `msgpack:"limit,omitempty"`
	Name  string      `msgpack:"name,omitempty"`
	Batch []Request   `msgpack:"batch,omitempty"`
}

// SecurityAuditResult is the result payload for TypeSecurityAudit.
type SecurityAuditResult struct {
	ChainOK    bool   `msgpack:"chain_ok"`
	EntryCount int    `msgpack:"entry_count"`
	HeadHash   string `msgpack:"head_hash"`
}

// Response is Success{ID, result} when OK is true, or Error{ID, Code,
// Message} otherwise. Exactly one result field is populated per request
// Type on success.
type Response struct {
	ID      uint64    `msgpack:"id"`
	OK      bool      `msgpack:"ok"`
	Code    ErrorCode `msgpack:"code,omitempty"`
	Message string    `msgpack:"message,omitempty"`

	Pong          bool                         `msgpack:"pong,omitempty"`
	Search        []backend.PackageInfo        `msgpack:"search,omitempty"`
	Info          *backend.DetailedPackageInfo `msgpack:"info,omitempty"`
	Suggestions   []string                     `msgpack:"suggestions,omitempty"`
	Status        *StatusResult                `msgpack:"status,omitempty"`
	Explicit      int                          `msgpack:"explicit,omitempty"`
	Updates       []backend.UpdateInfo         `msgpack:"updates,omitempty"`
	Metrics       *metrics.Snapshot            `msgpack:"metrics,omitempty"`
	SecurityAudit *SecurityAuditResult         `msgpack:"security_audit,omitempty"`
	BatchResults  []Response                   `msgpack:"batch_results,omitempty"`
}

// StatusResult is the wire shape of the logical StatusSnapshot.
type StatusResult struct {
	TotalPackages           int                      `msgpack:"total_packages"`
	ExplicitPackages        int                      `msgpack:"explicit_packages"`
	OrphanPackages          int                      `msgpack:"orphan_packages"`
	UpdatesAvailable        int                      `msgpack:"updates_available"`
	SecurityVulnerabilities int                      `msgpack:"security_vulnerabilities"`
	RuntimeVersions         []backend.RuntimeVersion `msgpack:"runtime_versions,omitempty"`
}

// Success builds an OK response with no result payload set beyond ID
// (callers set the relevant result field afterward).
func Success(id uint64) Response { return Response{ID: id, OK: true} }

// Error builds a failure response with the given code and message.
func Error(id uint64, code ErrorCode, message string) Response {
	return Response{ID: id, OK: false, Code: code, Message: message}
}
