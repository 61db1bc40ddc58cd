package index

import "sync/atomic"

// Handle publishes successive Index generations behind an atomic pointer.
// Readers call Load to obtain the current generation; it never blocks and
// always returns a fully-built Index.
type Handle struct {
	ptr atomic.Pointer[Index]
}

// NewHandle wraps an already-built Index as generation zero.
func NewHandle(initial *Index) *Handle {
	h := &Handle{}
	h.ptr.Store(initial)
	return h
}

// Load returns the current generation.
func (h *Handle) Load() *Index { return h.ptr.Load() }

// Publish atomically replaces the current generation. Existing holders of
// the previous *Index continue to see a consistent, complete view.
func (h *Handle) Publish(next *Index) { h.ptr.Store(next) }
