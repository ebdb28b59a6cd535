package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	ch := hub.Subscribe()
	hub.Publish(Event{Type: EventDecision, Data: map[string]interface{}{"type": "hold"}})

	ev := waitForEvent(t, ch)
	assert.Equal(t, EventDecision, ev.Type)
	assert.Equal(t, "hold", ev.Data["type"])
	assert.False(t, ev.Timestamp.IsZero(), "publish stamps missing timestamps")
}

func TestHubFiltersByType(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	tradeCh := hub.Subscribe(EventTradeExecuted, EventTradeFailed)

	hub.Publish(Event{Type: EventYieldUpdate})
	hub.Publish(Event{Type: EventTradeExecuted})

	ev := waitForEvent(t, tradeCh)
	assert.Equal(t, EventTradeExecuted, ev.Type)

	select {
	case extra := <-tradeCh:
		t.Fatalf("unexpected event %s leaked through the filter", extra.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubPreservesPublishOrder(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	ch := hub.Subscribe()

	types := []EventType{EventTradeQueued, EventTradeApproved, EventTradeExecuted}
	for _, eventType := range types {
		hub.Publish(Event{Type: eventType})
	}

	for _, want := range types {
		assert.Equal(t, want, waitForEvent(t, ch).Type)
	}
}

func TestHubSlowSubscriberDropsNotBlocks(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 1})
	hub.Start()
	defer hub.Stop()

	// Never read from this subscriber.
	_ = hub.Subscribe()
	active := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Event{Type: EventAlert})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}

	// The active subscriber still receives at least the first event.
	waitForEvent(t, active)
}

func TestHubConsumerReceivesEvents(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	var mu sync.Mutex
	var seen []EventType
	var wg sync.WaitGroup
	wg.Add(2)

	hub.RegisterConsumer(NewConsumerFunc([]EventType{EventCircuitBreaker, EventEmergencyStop}, func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
		wg.Done()
	}))

	hub.Publish(Event{Type: EventYieldUpdate}) // filtered out
	hub.Publish(Event{Type: EventCircuitBreaker})
	hub.Publish(Event{Type: EventEmergencyStop})

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not receive events")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []EventType{EventCircuitBreaker, EventEmergencyStop}, seen)
}

func TestHubStopClosesSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Start()

	ch := hub.Subscribe()
	hub.Stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "subscriber channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed on stop")
	}

	assert.Equal(t, 0, hub.SubscriberCount())
	assert.False(t, hub.IsStarted())
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	ch := hub.Subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Unsubscribe(ch)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHubMetricsCountDrops(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{BufferSize: 100, SubscriberBufferSize: 1})
	hub.Start()
	defer hub.Stop()

	_ = hub.Subscribe() // never drained

	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: EventAlert})
	}

	// Broadcast happens asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Metrics().EventsDropped > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected dropped events, metrics: %+v", hub.Metrics())
}
