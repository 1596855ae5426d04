package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventTurnStarted   EventType = "turn.started"
	EventTurnFinalized EventType = "turn.finalized"
	EventTurnCancelled EventType = "turn.cancelled"
	EventTurnFailed    EventType = "turn.failed"

	EventScrollRequested EventType = "stream.scroll.requested"

	EventDiagramApprovalReq EventType = "diagram.approval.requested"
	EventClarificationReq   EventType = "clarification.requested"

	EventModeSwitched EventType = "mode.switched"
	EventToastShown   EventType = "toast.shown"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type           EventType       `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a typed in-process publish/subscribe mechanism. It
// replaces ambient cross-component signaling; there are no global event
// names outside this package.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// DiagramApprovalPayload is the payload for EventDiagramApprovalReq.
type DiagramApprovalPayload struct {
	Source string `json:"source"`
}

// ClarificationPayload is the payload for EventClarificationReq.
type ClarificationPayload struct {
	Intro     string   `json:"intro"`
	Questions []string `json:"questions"`
	Outro     string   `json:"outro"`
}

// TurnFailedPayload is the payload for EventTurnFailed.
type TurnFailedPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Mode      Mode   `json:"mode"`
}

// ToastPayload is the payload for EventToastShown.
type ToastPayload struct {
	Message    string     `json:"message"`
	Level      ToastLevel `json:"level"`
	DurationMS int64      `json:"duration_ms"`
}
