package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grumpstudio/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishTypedSubscriber(t *testing.T) {
	bus := New(testLogger())
	defer bus.Close()

	got := make(chan domain.Event, 1)
	bus.Subscribe(domain.EventTurnStarted, func(_ context.Context, e domain.Event) {
		got <- e
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})

	select {
	case e := <-got:
		assert.Equal(t, domain.EventTurnStarted, e.Type)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestPublishTypeFilter(t *testing.T) {
	bus := New(testLogger())

	var hits atomic.Int32
	bus.Subscribe(domain.EventTurnFailed, func(context.Context, domain.Event) {
		hits.Add(1)
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})
	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnFinalized})
	bus.Close()

	assert.Zero(t, hits.Load())
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := New(testLogger())

	var hits atomic.Int32
	bus.SubscribeAll(func(context.Context, domain.Event) {
		hits.Add(1)
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})
	bus.Publish(context.Background(), domain.Event{Type: domain.EventToastShown})
	bus.Close()

	assert.Equal(t, int32(2), hits.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := New(testLogger())

	var hits atomic.Int32
	unsub := bus.Subscribe(domain.EventTurnStarted, func(context.Context, domain.Event) {
		hits.Add(1)
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})
	// Let the first dispatch land before unsubscribing.
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	unsub()
	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})
	bus.Close()

	assert.Equal(t, int32(1), hits.Load())
}

func TestPanickingHandlerRecovered(t *testing.T) {
	bus := New(testLogger())

	ok := make(chan struct{}, 1)
	bus.Subscribe(domain.EventTurnStarted, func(context.Context, domain.Event) {
		panic("bad subscriber")
	})
	bus.Subscribe(domain.EventTurnStarted, func(context.Context, domain.Event) {
		ok <- struct{}{}
	})

	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber starved by panicking one")
	}
	bus.Close()
}

func TestCloseStopsPublishes(t *testing.T) {
	bus := New(testLogger())

	var hits atomic.Int32
	bus.Subscribe(domain.EventTurnStarted, func(context.Context, domain.Event) {
		hits.Add(1)
	})

	bus.Close()
	bus.Close() // idempotent
	bus.Publish(context.Background(), domain.Event{Type: domain.EventTurnStarted})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, hits.Load())
}
