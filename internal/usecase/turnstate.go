package usecase

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"grumpstudio/internal/domain"
)

// Status labels shown while a turn is live.
const (
	StatusThinking = "Thinking..."
	StatusError    = "Error"
	statusRunning  = "Running: "
)

// TurnState is the live render state for the in-progress assistant reply.
// It is owned by exactly one controller instance and mutated only through
// the reducer; the rendering layer reads it via the holder's subscription.
type TurnState struct {
	LiveBlocks    []domain.ContentBlock
	LiveThinking  string
	LiveToolNames []string
	Status        string
}

// Clone returns a deep copy safe to hand to subscribers.
func (s TurnState) Clone() TurnState {
	cp := s
	cp.LiveBlocks = append([]domain.ContentBlock(nil), s.LiveBlocks...)
	cp.LiveToolNames = append([]string(nil), s.LiveToolNames...)
	return cp
}

// StateHolder is the observable turn-state container. Subscribers receive a
// snapshot after every change. It replaces the fine-grained reactive
// bindings of the original surface with an explicit subscribe/notify
// contract.
type StateHolder struct {
	mu    sync.RWMutex
	state TurnState
	subs  map[uint64]func(TurnState)
	next  uint64
}

// NewStateHolder creates an empty holder.
func NewStateHolder() *StateHolder {
	return &StateHolder{subs: make(map[uint64]func(TurnState))}
}

// Get returns a snapshot of the current state.
func (h *StateHolder) Get() TurnState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Clone()
}

// Set replaces the state and notifies subscribers synchronously.
// Notification order is not guaranteed.
func (h *StateHolder) Set(s TurnState) {
	h.mu.Lock()
	h.state = s
	subs := make([]func(TurnState), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	snap := s.Clone()
	h.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Reset clears the live state back to empty.
func (h *StateHolder) Reset() {
	h.Set(TurnState{})
}

// Subscribe registers fn to run after every state change. Returns an
// unsubscribe function.
func (h *StateHolder) Subscribe(fn func(TurnState)) func() {
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// defaultFrameInterval matches one animation frame at 60Hz.
const defaultFrameInterval = 16 * time.Millisecond

// ScrollScheduler coalesces scroll-to-bottom requests to at most one per
// frame interval. Rapid stream events collapse into a single trailing
// notification instead of thrashing layout.
type ScrollScheduler struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	pending bool
	fire    func()
	stopped bool
}

// NewScrollScheduler creates a scheduler invoking fire at most once per
// interval. interval <= 0 uses the 16ms frame default.
func NewScrollScheduler(interval time.Duration, fire func()) *ScrollScheduler {
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	return &ScrollScheduler{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		fire:    fire,
	}
}

// Request asks for a scroll. Fires immediately when the rate budget allows;
// otherwise schedules a single trailing fire for the next frame.
func (s *ScrollScheduler) Request() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.limiter.Allow() {
		s.mu.Unlock()
		s.fire()
		return
	}
	if s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	delay := s.limiter.Reserve().Delay()
	s.mu.Unlock()

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.pending = false
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			s.fire()
		}
	})
}

// Stop suppresses all future fires, including already-scheduled trailing
// ones. Safe to call multiple times.
func (s *ScrollScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
