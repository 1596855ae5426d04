package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grumpstudio/internal/domain"
	"grumpstudio/internal/usecase"
)

type nopAbort struct{}

func (nopAbort) Cancel() {}

// scriptTransport fails the first N calls, then replies with one text block.
type scriptTransport struct {
	mu       sync.Mutex
	calls    int
	failures int
	reply    string
}

func (s *scriptTransport) StartTurn(context.Context, []domain.Message, domain.TurnOptions) (<-chan domain.StreamEvent, domain.AbortHandle, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	reply := s.reply
	s.mu.Unlock()

	if fail {
		return nil, nil, errors.New("backend down")
	}
	ch := make(chan domain.StreamEvent, 1)
	ch <- domain.StreamEvent{Kind: domain.StreamText, Blocks: []domain.ContentBlock{domain.TextBlock(reply)}}
	close(ch)
	return ch, nopAbort{}, nil
}

func (s *scriptTransport) setReply(r string) {
	s.mu.Lock()
	s.reply = r
	s.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryKeyResendsFailedTurn(t *testing.T) {
	transport := &scriptTransport{failures: 1, reply: "second time lucky"}
	ctrl := usecase.NewController(usecase.ControllerDeps{Transport: transport, Logger: discardLogger()})
	defer ctrl.Close()

	require.NoError(t, ctrl.Send(context.Background(), usecase.SendRequest{Text: "hello"}))
	// The failed turn kept only the user message.
	require.Equal(t, 1, ctrl.Transcript().Len())

	m := NewModel(ModelDeps{Controller: ctrl, Logger: discardLogger()})
	updated, _ := m.Update(TurnFailedMsg{})
	m = updated.(Model)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)

	done, ok := cmd().(TurnDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.Err)

	msgs := ctrl.Transcript().Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "second time lucky", msgs[1].Content)
}

func TestRetryKeyIgnoredWithoutFailure(t *testing.T) {
	transport := &scriptTransport{reply: "ok"}
	ctrl := usecase.NewController(usecase.ControllerDeps{Transport: transport, Logger: discardLogger()})
	defer ctrl.Close()

	m := NewModel(ModelDeps{Controller: ctrl, Logger: discardLogger()})
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = updated.(Model)
	assert.False(t, m.waiting)
}

func TestRegenerateKeyReplacesLastReply(t *testing.T) {
	transport := &scriptTransport{reply: "first answer"}
	ctrl := usecase.NewController(usecase.ControllerDeps{Transport: transport, Logger: discardLogger()})
	defer ctrl.Close()

	require.NoError(t, ctrl.Send(context.Background(), usecase.SendRequest{Text: "question"}))
	transport.setReply("second answer")

	m := NewModel(ModelDeps{Controller: ctrl, Logger: discardLogger()})
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)

	done, ok := cmd().(TurnDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.Err)

	msgs := ctrl.Transcript().Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "second answer", msgs[1].Content)
}
