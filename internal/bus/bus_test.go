package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestNewEvent(t *testing.T) {
	t.Run("copies payload", func(t *testing.T) {
		payload := map[string]any{"label": "Prod"}
		ev := NewEvent(OpAdd, KindServer, "web-1", payload, testTime)

		payload["label"] = "changed"
		assert.Equal(t, "Prod", ev.Payload["label"])
		assert.Equal(t, "add server/web-1", ev.String())
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, testTime, ev.CreatedAt)
	})

	t.Run("delete carries no payload", func(t *testing.T) {
		ev := NewEvent(OpDelete, KindDomain, "example.com", map[string]any{"x": 1}, testTime)
		assert.Nil(t, ev.Payload)
	})

	t.Run("ids are unique", func(t *testing.T) {
		a := NewEvent(OpAdd, KindLabel, "A", nil, testTime)
		b := NewEvent(OpAdd, KindLabel, "A", nil, testTime)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestBus_PublishOrder(t *testing.T) {
	b := New(zap.NewNop())

	var got []string
	b.Subscribe("first", func(Event) error { got = append(got, "first"); return nil })
	b.Subscribe("second", func(Event) error { got = append(got, "second"); return nil })
	b.Subscribe("third", func(Event) error { got = append(got, "third"); return nil })

	b.Publish(NewEvent(OpAdd, KindLabel, "Prod", nil, testTime))

	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestBus_FailureIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := New(zap.New(core))

	var delivered []string
	b.Subscribe("failing", func(Event) error { return errors.New("boom") })
	b.Subscribe("panicking", func(Event) error { panic("kaboom") })
	b.Subscribe("healthy", func(e Event) error { delivered = append(delivered, e.Name); return nil })

	require.NotPanics(t, func() {
		b.Publish(NewEvent(OpUpdate, KindServer, "web-1", nil, testTime))
	})

	assert.Equal(t, []string{"web-1"}, delivered)
	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "failing", entries[0].ContextMap()["subscriber"])
	assert.Equal(t, "panicking", entries[1].ContextMap()["subscriber"])
	assert.Contains(t, entries[1].ContextMap()["error"], "kaboom")
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(zap.NewNop())

	calls := 0
	id := b.Subscribe("counter", func(Event) error { calls++; return nil })
	assert.Equal(t, 1, b.Len())

	b.Publish(NewEvent(OpAdd, KindLabel, "A", nil, testTime))
	assert.True(t, b.Unsubscribe(id))
	assert.False(t, b.Unsubscribe(id), "second unsubscribe is a no-op")
	b.Publish(NewEvent(OpAdd, KindLabel, "B", nil, testTime))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Len())
}

func TestBus_HandlerMayMutateSubscriptions(t *testing.T) {
	b := New(zap.NewNop())

	var selfID SubscriptionID
	var nested []string
	selfID = b.Subscribe("once", func(e Event) error {
		b.Unsubscribe(selfID)
		b.Subscribe("late", func(e Event) error { nested = append(nested, e.Name); return nil })
		b.Publish(NewEvent(OpAdd, KindLabel, "nested", nil, testTime))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Publish(NewEvent(OpAdd, KindLabel, "outer", nil, testTime))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish from inside a handler deadlocked")
	}

	// The late subscriber joined after "outer" started, so it sees only "nested".
	assert.Equal(t, []string{"nested"}, nested)
}

func TestBus_ConcurrentSubscribeAndPublish(t *testing.T) {
	b := New(zap.NewNop())

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := b.Subscribe("transient", func(Event) error {
				mu.Lock()
				count++
				mu.Unlock()
				return nil
			})
			b.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			b.Publish(NewEvent(OpUpdate, KindSettings, GlobalName, nil, testTime))
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.Len())
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, 20*20)
}
