// Package protocol defines the daemon's wire format: a 4-byte big-endian
// length prefix followed by a msgpack-encoded, self-describing payload, and
// the tagged Request/Response union both sides agree on at build time.
//
// # Framing
//
// ReadFrame/WriteFrame implement the length-prefix framing in isolation
// from the payload schema. A frame whose declared length exceeds
// MaxFrameSize is a protocol-fatal error: the caller must close the
// connection after auditing it, never attempt to resynchronize.
//
// # Messages
//
// Request carries a Type tag and the fields relevant to that tag; unused
// fields are omitted on the wire via msgpack's omitempty-equivalent
// behavior. Response is Success{ID, result} or Error{ID, Code, Message},
// modeled as one struct with an OK discriminator rather than two Go types,
// so decoding never has to guess which shape arrived.
//
// # Correlation
//
// Every Request carries a 64-bit ID chosen by the client; the Response
// echoes it unchanged. The codec does not interpret ID; ordering and
// matching are the caller's responsibility (internal/daemon).
package protocol
