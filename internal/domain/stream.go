package domain

import "context"

// StreamEventKind identifies the kind of stream event delivered during a turn.
type StreamEventKind string

const (
	StreamText       StreamEventKind = "text"
	StreamToolCall   StreamEventKind = "tool_call"
	StreamToolResult StreamEventKind = "tool_result"
	StreamThinking   StreamEventKind = "thinking"
	StreamError      StreamEventKind = "error"
)

// StreamEvent is one event from a turn's live stream.
//
// Text, tool_call and tool_result events carry the FULL block sequence so
// far; each one replaces the previous live sequence wholesale. Thinking
// events carry a delta chunk that the consumer accumulates; an empty delta
// means "reset accumulated thinking to empty".
type StreamEvent struct {
	Kind   StreamEventKind `json:"kind"`
	Blocks []ContentBlock  `json:"blocks,omitempty"`
	Delta  string          `json:"delta,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// MemorySnippet is one retrieved context snippet forwarded to the backend.
type MemorySnippet struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// Attachment is an image or document forwarded with a turn. The engine only
// forwards attachments; the surrounding shell owns their lifecycle.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
}

// TurnOptions parameterize one StartTurn call.
type TurnOptions struct {
	Mode          Mode            `json:"mode"`
	SessionType   string          `json:"session_type,omitempty"`
	WorkspaceRoot string          `json:"workspace_root,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	ModelID       string          `json:"model_id,omitempty"`
	Image         *Attachment     `json:"image,omitempty"`
	SkillIDs      []string        `json:"enabled_skill_ids,omitempty"`
	MemoryContext []MemorySnippet `json:"memory_context,omitempty"`
}

// AbortHandle is the cancellation capability for one in-flight turn.
// Cancel is idempotent; after the first call no further stream events are
// delivered.
type AbortHandle interface {
	Cancel()
}

// Transport opens one cancellable streaming request per turn. The returned
// channel is finite: it closes on completion, error or abort. Errors that
// occur after the stream opened surface as a StreamError event.
type Transport interface {
	StartTurn(ctx context.Context, outgoing []Message, opts TurnOptions) (<-chan StreamEvent, AbortHandle, error)
}
