package domain

import (
	"context"
	"time"
)

// SessionStore persists finalized conversation state. Called once per
// finalized turn, never per intermediate stream event. Writes are treated
// as eventually consistent.
type SessionStore interface {
	// CreateSession persists a new session and returns its ID.
	CreateSession(ctx context.Context, messages []Message) (string, error)
	// UpdateSession replaces the stored message list for an existing session.
	UpdateSession(ctx context.Context, id string, messages []Message) error
	// LoadSession returns the stored message list for a session.
	LoadSession(ctx context.Context, id string) ([]Message, error)
	// ListSessions returns stored session summaries, newest first.
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
}

// SessionSummary is one row in a session list view.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SlashHandler gets first right of refusal on every user submission. When it
// handles the text it may inject assistant messages via inject and the turn
// ends without any network call. Errors are swallowed by the caller; a
// failing middleware never aborts a turn.
type SlashHandler interface {
	TryHandle(ctx context.Context, text string, inject func(Message)) (bool, error)
}

// MemoryProvider retrieves advisory context snippets. Failures are swallowed;
// the turn proceeds with empty context.
type MemoryProvider interface {
	ListMemories(ctx context.Context, filter string, limit int) ([]MemorySnippet, error)
}

// Telemetry is fire-and-forget; implementations must never panic into the
// engine's control flow.
type Telemetry interface {
	TrackMessageSent(length int)
	TrackError(kind, message string)
	LogError(context string, meta map[string]string)
}

// ToastLevel grades a transient notification.
type ToastLevel string

const (
	ToastInfo  ToastLevel = "info"
	ToastError ToastLevel = "error"
)

// Notifier is the engine's only user-facing side channel outside the
// message list itself.
type Notifier interface {
	ShowToast(message string, level ToastLevel, duration time.Duration)
}

// WorkspaceContext carries read-only values supplied by the surrounding
// application shell. The engine forwards them verbatim.
type WorkspaceContext struct {
	WorkspaceRoot string
	SessionType   string
	Provider      string
	ModelID       string
	SkillIDs      []string
}
