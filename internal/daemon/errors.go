package daemon

import (
	"errors"

	"github.com/omgd/omgd/internal/protocol"
)

// Sentinel handler errors mapped onto wire error codes by errorResponse.
// These never cross a package boundary except wrapped with fmt.Errorf, so
// callers must use errors.Is against these values, never direct equality.
var (
	errNotFound = errors.New("daemon: not found")
	errInternal = errors.New("daemon: internal error")
	errTimeout  = errors.New("daemon: timeout")
	errProtocol = errors.New("daemon: protocol error")
	errDegraded = errors.New("daemon: degraded")
)

func (d *Dispatcher) errorResponse(id uint64, err error) protocol.Response {
	switch {
	case errors.Is(err, errNotFound):
		return protocol.Error(id, protocol.CodeNotFound, "not found")
	case errors.Is(err, errTimeout):
		return protocol.Error(id, protocol.CodeTimeout, "request timed out")
	case errors.Is(err, errProtocol):
		return protocol.Error(id, protocol.CodeProtocol, err.Error())
	case errors.Is(err, errDegraded):
		return protocol.Error(id, protocol.CodeDegraded, "daemon is in degraded mode")
	default:
		return protocol.Error(id, protocol.CodeInternal, err.Error())
	}
}
