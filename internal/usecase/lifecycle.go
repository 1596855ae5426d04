package usecase

import (
	"sync"

	"grumpstudio/internal/domain"
)

// LifecycleGuard ties in-flight turns to the lifetime of one conversation
// view. It holds the abort handle for the active turn, hands out generation
// numbers so stale stream callbacks can be discarded, and gates every state
// mutation behind a mounted check.
//
// Cancel and Close are idempotent; after either, no callback from the
// cancelled generation may mutate state.
type LifecycleGuard struct {
	mu      sync.Mutex
	mounted bool
	gen     uint64
	abort   domain.AbortHandle
}

// NewLifecycleGuard creates a mounted guard.
func NewLifecycleGuard() *LifecycleGuard {
	return &LifecycleGuard{mounted: true}
}

// Begin registers the abort handle for a new turn and returns its
// generation number. Returns false when the guard is already unmounted.
func (g *LifecycleGuard) Begin(abort domain.AbortHandle) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.mounted {
		return 0, false
	}
	g.gen++
	g.abort = abort
	return g.gen, true
}

// End clears the abort handle when the turn with the given generation
// finishes. A stale generation is ignored.
func (g *LifecycleGuard) End(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen == g.gen {
		g.abort = nil
	}
}

// Alive reports whether a callback from the given generation may still
// mutate state: the guard is mounted and no newer turn has started.
func (g *LifecycleGuard) Alive(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mounted && gen == g.gen
}

// Cancel aborts the in-flight turn, if any, and bumps the generation so
// already-delivered callbacks become stale. Idempotent.
func (g *LifecycleGuard) Cancel() {
	g.mu.Lock()
	abort := g.abort
	g.abort = nil
	g.gen++
	g.mu.Unlock()
	if abort != nil {
		abort.Cancel()
	}
}

// Close cancels any in-flight turn and unmounts the guard. Every later
// Alive check fails, so no in-flight callback can mutate state after
// teardown. Idempotent.
func (g *LifecycleGuard) Close() {
	g.mu.Lock()
	abort := g.abort
	g.abort = nil
	g.mounted = false
	g.gen++
	g.mu.Unlock()
	if abort != nil {
		abort.Cancel()
	}
}

// Mounted reports whether the guard's view is still alive.
func (g *LifecycleGuard) Mounted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mounted
}
