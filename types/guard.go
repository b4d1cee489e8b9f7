package types

import "sync/atomic"

// Guard is a non-reentrant latch held for the duration of a fund-moving
// call. A custody implementation that calls back into the engine while the
// latch is held observes a failed TryEnter instead of re-entering half-
// mutated state. Exit must run on every path out of the guarded section.
type Guard struct {
	held atomic.Bool
}

// TryEnter acquires the latch. It reports false when the latch is already
// held, which the caller must treat as a reentrant invocation.
func (g *Guard) TryEnter() bool {
	return g.held.CompareAndSwap(false, true)
}

// Exit releases the latch unconditionally.
func (g *Guard) Exit() {
	g.held.Store(false)
}

// Held reports whether the latch is currently held.
func (g *Guard) Held() bool {
	return g.held.Load()
}
