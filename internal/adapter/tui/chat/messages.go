// Package chat implements the Bubble Tea terminal surface for the
// conversation engine. It is a pure rendering layer: all conversation state
// lives in the controller and arrives here via subscription messages.
package chat

import (
	"grumpstudio/internal/domain"
	"grumpstudio/internal/usecase"
)

// StateChangedMsg carries a live turn-state snapshot from the state holder.
type StateChangedMsg struct {
	State usecase.TurnState
}

// TurnDoneMsg signals that the Send goroutine finished. Gen identifies the
// request generation so stale completions can be discarded.
type TurnDoneMsg struct {
	Err error
	Gen uint64
}

// TurnFailedMsg signals that the last turn failed; it arms the retry key.
type TurnFailedMsg struct {
	Payload domain.TurnFailedPayload
}

// ScrollMsg requests a scroll-to-bottom; already coalesced upstream.
type ScrollMsg struct{}

// ToastMsg surfaces a transient notification.
type ToastMsg struct {
	Payload domain.ToastPayload
}

// ToastExpiredMsg clears the visible toast.
type ToastExpiredMsg struct{}

// DiagramPromptMsg opens the diagram approval prompt.
type DiagramPromptMsg struct {
	Source string
}

// ClarifyPromptMsg opens the clarifying-questions prompt.
type ClarifyPromptMsg struct {
	Payload domain.ClarificationPayload
}
