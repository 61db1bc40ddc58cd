package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/omgd/omgd/internal/audit"
	"github.com/omgd/omgd/internal/protocol"
)

// connState names the per-connection state machine's states: Accepting ->
// (Framing -> Dispatching -> Responding)* -> Closed|Aborted. Closed is a
// normal EOF; Aborted covers protocol errors, oversize frames, and write
// failures, and is always audited.
type connState string

const (
	connAccepting   connState = "accepting"
	connFraming     connState = "framing"
	connDispatching connState = "dispatching"
	connResponding  connState = "responding"
	connClosed      connState = "closed"
	connAborted     connState = "aborted"
)

// DefaultRequestTimeout and DefaultBatchTimeout bound how long a single
// request (respectively, a batch request) may take before the connection
// observes a Timeout response.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultBatchTimeout   = 60 * time.Second
)

// serveConn drives one client connection through its state machine.
// Requests on a connection are handled strictly sequentially: the
// half-duplex framing contract means at most one request is ever in
// flight per connection.
func serveConn(ctx context.Context, conn net.Conn, dispatcher *Dispatcher, auditLog *audit.Logger, log zerolog.Logger, maxFrameSize int, onBytesIn, onBytesOut func(n uint64)) {
	defer conn.Close()
	finalState := connAccepting
	defer func() {
		log.Debug().Str("state", string(finalState)).Str("remote", conn.RemoteAddr().String()).Msg("daemon: connection closed")
	}()

	for {
		payload, err := protocol.ReadFrameLimit(conn, maxFrameSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				finalState = connClosed
				return
			}
			finalState = connAborted
			auditAbort(auditLog, err)
			return
		}
		onBytesIn(uint64(len(payload)))

		var req protocol.Request
		if decodeErr := protocol.DecodePayload(payload, &req); decodeErr != nil {
			finalState = connAborted
			auditAbort(auditLog, decodeErr)
			return
		}

		timeout := DefaultRequestTimeout
		if req.Type == protocol.TypeBatch {
			timeout = DefaultBatchTimeout
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp := dispatchWithDeadline(reqCtx, dispatcher, req)
		cancel()

		data, err := protocol.EncodeMessage(resp)
		if err != nil {
			finalState = connAborted
			auditAbort(auditLog, err)
			return
		}
		if err := protocol.WriteFrameLimit(conn, data, maxFrameSize); err != nil {
			finalState = connAborted
			auditAbort(auditLog, err)
			return
		}
		onBytesOut(uint64(len(data)))
	}
}

// dispatchWithDeadline runs Dispatch and converts context cancellation or
// deadline expiry into a Timeout response instead of letting it propagate
// as a generic internal error. The backend call behind a timed-out
// dispatch is detached; its eventual result, if any, is discarded.
func dispatchWithDeadline(ctx context.Context, dispatcher *Dispatcher, req protocol.Request) protocol.Response {
	if ctx.Err() != nil {
		return protocol.Error(req.ID, protocol.CodeTimeout, "request timed out")
	}
	done := make(chan protocol.Response, 1)
	go func() {
		done <- dispatcher.Dispatch(ctx, req)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		return protocol.Error(req.ID, protocol.CodeTimeout, "request timed out")
	}
}

func auditAbort(auditLog *audit.Logger, cause error) {
	if auditLog == nil {
		return
	}
	_ = auditLog.Append(audit.KindPolicyViolation, "connection aborted: "+cause.Error())
}
