package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"grumpstudio/internal/domain"
)

// maxLineSize bounds one SSE line; full block sequences ride on single
// lines, so the buffer needs headroom beyond bufio's default.
const maxLineSize = 4 * 1024 * 1024

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a StreamEvent. The returned channel is closed when the stream
// ends, the body is closed, or ctx is cancelled; nothing is delivered after
// cancellation.
func parseSSEStream(ctx context.Context, body io.ReadCloser) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()

			// Skip empty lines and comments.
			if len(line) == 0 || line[0] == ':' {
				continue
			}
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimPrefix(line, []byte("data: "))

			// Common termination signal.
			if bytes.Equal(data, []byte("[DONE]")) {
				return
			}

			var we wireEvent
			if err := json.Unmarshal(data, &we); err != nil {
				// Skip unparseable lines.
				continue
			}
			ev, ok := toStreamEvent(we)
			if !ok {
				continue
			}

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}

			if ev.Kind == domain.StreamError {
				return
			}
		}
		// A scanner error other than EOF means the connection dropped
		// mid-stream; surface it as a stream error event.
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- domain.StreamEvent{Kind: domain.StreamError, Err: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}
