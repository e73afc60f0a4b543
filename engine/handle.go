package engine

import "sync/atomic"

// Handle is the shared-ownership wrapper around an Engine. Its own heap
// box is what JIT-compiled entries embed raw pointers into, so a Handle
// must always be passed and stored as a pointer — never by value — and
// its Engine field never replaced wholesale. Go's non-moving heap means
// this requires no special pinning beyond that discipline.
type Handle struct {
	eng      *Engine
	refcount int32
}

// Create returns a fresh Handle around a new, empty Engine with a
// refcount of 1.
func Create() *Handle {
	return &Handle{eng: newEngine(), refcount: 1}
}

// Retain increments the refcount and returns h, for callers that want to
// share ownership explicitly (mirroring the embedding surface's
// engine_create/engine_destroy pairing).
func (h *Handle) Retain() *Handle {
	atomic.AddInt32(&h.refcount, 1)
	return h
}

// Close releases one reference. The underlying Engine is reclaimed by the
// garbage collector once the last reference (and every JIT-pinned
// resource holding this Handle) is gone; Close exists to make the
// embedding surface's engine_destroy symmetric and to catch
// double-release bugs in tests, not to free anything itself.
func (h *Handle) Close() {
	if atomic.AddInt32(&h.refcount, -1) < 0 {
		panic("engine: Handle closed more times than retained")
	}
}

// Engine returns the underlying Engine. Callers must not retain this
// pointer past the Handle's lifetime assumptions (it is only ever valid
// while at least one reference to h is outstanding).
func (h *Handle) Engine() *Engine {
	return h.eng
}

// Clone deep-clones engine state into a brand-new Engine: every global
// and local Variable is independently cloned, call frames are copied
// structurally, and the clone starts with a refcount of 1. No JIT cache
// entries are carried over — blocks referenced from a cloned Function
// value compile independently, same as any other Block clone.
func (h *Handle) Clone() *Handle {
	src := h.eng
	dst := newEngine()
	dst.lastExitStatus = src.LastExitStatus()

	for name, v := range src.vars {
		dst.vars[name] = v.DeepClone()
	}
	if src.lastReturn != nil {
		dst.lastReturn = src.lastReturn.DeepClone()
	}
	for _, frame := range src.callStack {
		nf := newFunctionState()
		for name, v := range frame.vars {
			nf.vars[name] = v.DeepClone()
		}
		dst.callStack = append(dst.callStack, nf)
	}

	return &Handle{eng: dst, refcount: 1}
}
