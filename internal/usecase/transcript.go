package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"grumpstudio/internal/domain"
)

// Transcript is the ordered conversation log for one open conversation
// view. Messages are immutable once appended; regenerate replaces the last
// message rather than mutating in place.
//
// Every successful Append or ReplaceLast notifies the session store with the
// full updated sequence. While a turn is streaming, persistence is deferred
// to turn finalize so partial text never hits the store.
type Transcript struct {
	mu        sync.RWMutex
	msgs      []domain.Message
	sessionID string
	deferring bool

	store  domain.SessionStore
	logger *slog.Logger
}

// NewTranscript creates a transcript backed by the given store. store may be
// nil for transient conversations that are never persisted.
func NewTranscript(store domain.SessionStore, logger *slog.Logger) *Transcript {
	return &Transcript{store: store, logger: logger}
}

// Restore seeds the transcript from a previously persisted session.
func (t *Transcript) Restore(sessionID string, msgs []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = sessionID
	t.msgs = make([]domain.Message, len(msgs))
	copy(t.msgs, msgs)
}

// SessionID returns the persisted session ID, or "" for a transient
// conversation that has not been saved yet.
func (t *Transcript) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// Append adds a message to the log.
func (t *Transcript) Append(ctx context.Context, msg domain.Message) {
	t.mu.Lock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	t.msgs = append(t.msgs, msg)
	t.mu.Unlock()
	t.persist(ctx)
}

// ReplaceLast swaps the final message for a new one, for callers that amend
// the log tail rather than append. Messages stay immutable: the old entry is
// replaced whole, never edited in place. No-op on an empty log.
func (t *Transcript) ReplaceLast(ctx context.Context, msg domain.Message) {
	t.mu.Lock()
	if len(t.msgs) == 0 {
		t.mu.Unlock()
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	t.msgs[len(t.msgs)-1] = msg
	t.mu.Unlock()
	t.persist(ctx)
}

// DropLast removes the final message when it has the given role. Used by
// regenerate before starting the replacement turn.
func (t *Transcript) DropLast(role string) (domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.msgs) == 0 || t.msgs[len(t.msgs)-1].Role != role {
		return domain.Message{}, false
	}
	last := t.msgs[len(t.msgs)-1]
	t.msgs = t.msgs[:len(t.msgs)-1]
	return last, true
}

// Snapshot returns a copy of the current message sequence.
func (t *Transcript) Snapshot() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := make([]domain.Message, len(t.msgs))
	copy(cp, t.msgs)
	return cp
}

// Len returns the number of messages in the log.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// SetDeferring toggles deferred persistence. While true, Append and
// ReplaceLast skip the store; Flush writes the full sequence once the turn
// finalizes.
func (t *Transcript) SetDeferring(d bool) {
	t.mu.Lock()
	t.deferring = d
	t.mu.Unlock()
}

// Flush persists the full sequence immediately, regardless of the deferring
// flag. Called once per finalized turn.
func (t *Transcript) Flush(ctx context.Context) {
	t.write(ctx, t.Snapshot())
}

func (t *Transcript) persist(ctx context.Context) {
	t.mu.RLock()
	deferring := t.deferring
	t.mu.RUnlock()
	if deferring {
		return
	}
	t.write(ctx, t.Snapshot())
}

// write pushes the sequence to the store. Store failures are logged, never
// propagated: persistence is eventually consistent and a failed write must
// not abort a turn.
func (t *Transcript) write(ctx context.Context, msgs []domain.Message) {
	if t.store == nil || len(msgs) == 0 {
		return
	}
	t.mu.Lock()
	id := t.sessionID
	t.mu.Unlock()

	if id == "" {
		newID, err := t.store.CreateSession(ctx, msgs)
		if err != nil {
			t.logger.Warn("session create failed", "error", err)
			return
		}
		t.mu.Lock()
		t.sessionID = newID
		t.mu.Unlock()
		return
	}
	if err := t.store.UpdateSession(ctx, id, msgs); err != nil {
		t.logger.Warn("session update failed", "session_id", id, "error", err)
	}
}
