// Package telemetry implements the fire-and-forget telemetry collaborator
// on top of slog and the active trace span.
package telemetry

import (
	"log/slog"
	"sync/atomic"

	"grumpstudio/internal/domain"
)

// Slog reports telemetry through structured logs. It keeps simple local
// counters for the dashboard surfaces; nothing here may panic or block.
type Slog struct {
	logger *slog.Logger

	messagesSent atomic.Int64
	errorsSeen   atomic.Int64
}

// New creates a slog-backed telemetry sink.
func New(logger *slog.Logger) *Slog {
	return &Slog{logger: logger}
}

// TrackMessageSent implements domain.Telemetry.
func (s *Slog) TrackMessageSent(length int) {
	s.messagesSent.Add(1)
	s.logger.Debug("message sent", "length", length)
}

// TrackError implements domain.Telemetry.
func (s *Slog) TrackError(kind, message string) {
	s.errorsSeen.Add(1)
	s.logger.Warn("tracked error", "kind", kind, "message", message)
}

// LogError implements domain.Telemetry.
func (s *Slog) LogError(context string, meta map[string]string) {
	attrs := make([]any, 0, 2+2*len(meta))
	attrs = append(attrs, "context", context)
	for k, v := range meta {
		attrs = append(attrs, k, v)
	}
	s.logger.Error("telemetry error", attrs...)
}

// MessagesSent returns the message counter.
func (s *Slog) MessagesSent() int64 { return s.messagesSent.Load() }

// ErrorsSeen returns the error counter.
func (s *Slog) ErrorsSeen() int64 { return s.errorsSeen.Load() }

var _ domain.Telemetry = (*Slog)(nil)
