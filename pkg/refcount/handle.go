package refcount

import (
	"fmt"
	"io"
	"sync"
)

// Handle reference-counts a single io.Closer (an open index file). The
// closer is only closed once the handle has been retired and every
// outstanding AddRef has a matching Release.
type Handle struct {
	mu      sync.Mutex
	count   int
	retired bool
	target  io.Closer
}

// New wraps target with a reference count of one, representing the
// caller's own initial hold.
func New(target io.Closer) *Handle {
	return &Handle{target: target, count: 1}
}

// AddRef increments the count. Must be called before a snapshot carrying
// this handle is handed to a reader.
func (h *Handle) AddRef() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
}

// Release decrements the count. Called once a reader is done with its
// snapshot. Closes the underlying file if this was the last reference
// and the handle has been retired.
func (h *Handle) Release() error {
	h.mu.Lock()
	h.count--
	if h.count < 0 {
		h.mu.Unlock()
		panic("refcount: Release without matching AddRef")
	}
	shouldClose := h.count == 0 && h.retired
	h.mu.Unlock()

	if shouldClose {
		return h.target.Close()
	}
	return nil
}

// Retire marks the handle as superseded — no new readers should AddRef
// it after this point — and closes the underlying file immediately if
// no reader currently holds it.
func (h *Handle) Retire() error {
	h.mu.Lock()
	if h.retired {
		h.mu.Unlock()
		return fmt.Errorf("refcount: already retired")
	}
	h.retired = true
	shouldClose := h.count == 0
	h.mu.Unlock()

	if shouldClose {
		return h.target.Close()
	}
	return nil
}

// Count reports the current reference count, for diagnostics and tests.
func (h *Handle) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
