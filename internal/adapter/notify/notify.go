// Package notify implements the toast notification collaborator by
// publishing on the event bus; surfaces subscribe and render.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"grumpstudio/internal/domain"
)

// BusNotifier publishes toasts as bus events.
type BusNotifier struct {
	bus domain.EventBus
}

// New creates a bus-backed notifier.
func New(bus domain.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// ShowToast implements domain.Notifier.
func (n *BusNotifier) ShowToast(message string, level domain.ToastLevel, duration time.Duration) {
	payload, err := json.Marshal(domain.ToastPayload{
		Message:    message,
		Level:      level,
		DurationMS: duration.Milliseconds(),
	})
	if err != nil {
		return
	}
	n.bus.Publish(context.Background(), domain.Event{
		Type:      domain.EventToastShown,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

var _ domain.Notifier = (*BusNotifier)(nil)
