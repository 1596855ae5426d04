package usecase

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grumpstudio/internal/domain"
)

func TestStateHolderSubscribeNotify(t *testing.T) {
	h := NewStateHolder()

	var got TurnState
	var calls int
	unsub := h.Subscribe(func(s TurnState) {
		got = s
		calls++
	})

	h.Set(TurnState{Status: StatusThinking})
	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusThinking, got.Status)

	unsub()
	h.Set(TurnState{Status: StatusError})
	assert.Equal(t, 1, calls)
}

func TestStateHolderSnapshotIsolation(t *testing.T) {
	h := NewStateHolder()
	h.Set(TurnState{LiveBlocks: []domain.ContentBlock{domain.TextBlock("a")}})

	snap := h.Get()
	snap.LiveBlocks[0].Content = "mutated"

	assert.Equal(t, "a", h.Get().LiveBlocks[0].Content)
}

func TestStateHolderConcurrentAccess(t *testing.T) {
	h := NewStateHolder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Set(TurnState{Status: StatusThinking})
		}()
		go func() {
			defer wg.Done()
			_ = h.Get()
		}()
	}
	wg.Wait()
}

func TestScrollSchedulerCoalesces(t *testing.T) {
	var fires atomic.Int32
	s := NewScrollScheduler(50*time.Millisecond, func() { fires.Add(1) })

	for i := 0; i < 20; i++ {
		s.Request()
	}

	// One immediate fire plus at most one trailing fire.
	time.Sleep(120 * time.Millisecond)
	n := fires.Load()
	assert.GreaterOrEqual(t, n, int32(1))
	assert.LessOrEqual(t, n, int32(2))
}

func TestScrollSchedulerStopSuppresses(t *testing.T) {
	var fires atomic.Int32
	s := NewScrollScheduler(30*time.Millisecond, func() { fires.Add(1) })

	s.Request()
	s.Request() // schedules a trailing fire
	s.Stop()

	before := fires.Load()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, before, fires.Load())

	s.Request()
	assert.Equal(t, before, fires.Load())
}
