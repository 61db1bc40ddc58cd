package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single message payload, per the spec's protocol
// limits.
const MaxFrameSize = 1 << 20 // 1 MiB

// ErrFrameTooLarge is returned when a frame's declared or actual length
// exceeds MaxFrameSize. The connection must be closed on this error.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// ReadFrame reads one length-prefixed frame from r: a 4-byte big-endian
// length, then exactly that many payload bytes. The frame is bounded by
// MaxFrameSize; use ReadFrameLimit to apply a different (e.g.
// configured) bound.
func ReadFrame(r io.Reader) ([]byte, error) {
	return ReadFrameLimit(r, MaxFrameSize)
}

// ReadFrameLimit is ReadFrame with an explicit maximum frame size, so a
// listener can enforce an operator-configured bound instead of the
// built-in default.
func ReadFrameLimit(r io.Reader, maxSize int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > uint32(maxSize) {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame, bounded by
// MaxFrameSize. Use WriteFrameLimit to apply a different bound.
func WriteFrame(w io.Writer, payload []byte) error {
	return WriteFrameLimit(w, payload, MaxFrameSize)
}

// WriteFrameLimit is WriteFrame with an explicit maximum frame size.
func WriteFrameLimit(w io.Writer, payload []byte, maxSize int) error {
	if len(payload) > maxSize {
		return fmt.Errorf("%w: payload is %d bytes", ErrFrameTooLarge, len(payload))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteMessage encodes v with msgpack and writes it as one frame.
func WriteMessage(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("protocol: encode: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadMessage reads one frame and decodes it with msgpack into v.
func ReadMessage(r io.Reader, v any) error {
	payload, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return DecodePayload(payload, v)
}

// EncodeMessage msgpack-encodes v without framing it; pair with WriteFrame.
func EncodeMessage(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return data, nil
}

// DecodePayload msgpack-decodes an already-read frame payload into v.
func DecodePayload(payload []byte, v any) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("protocol: decode: %w", err)
	}
	return nil
}
