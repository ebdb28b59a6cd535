// Package stream provides the typed event bus for controller state transitions.
package stream

import (
	"sync"
	"time"
)

// EventType identifies a controller state transition.
type EventType string

const (
	EventModeChange      EventType = "mode_change"
	EventDecision        EventType = "decision"
	EventTradeQueued     EventType = "trade_queued"
	EventTradeApproved   EventType = "trade_approved"
	EventTradeExecuted   EventType = "trade_executed"
	EventTradeFailed     EventType = "trade_failed"
	EventCircuitBreaker  EventType = "circuit_breaker"
	EventEmergencyStop   EventType = "emergency_stop"
	EventYieldUpdate     EventType = "yield_update"
	EventPortfolioUpdate EventType = "portfolio_update"
	EventAlert           EventType = "alert"
)

// Event is a single typed controller event. Events are emitted in the order
// transitions occur; there is no total order across independent loops.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           1000,
		SubscriberBufferSize: 100,
	}
}

// Hub fans controller events out to multiple consumers via channels.
// Publishing is non-blocking; slow consumers drop events rather than
// stalling the control loop.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers []*Subscriber
	eventChan   chan Event
	done        chan struct{}
	started     bool
	consumers   []Consumer
	consumersMu sync.RWMutex

	// Metrics
	eventsReceived  uint64
	eventsBroadcast uint64
	eventsDropped   uint64
	metricsMu       sync.RWMutex
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	ID           string
	Types        map[EventType]bool // nil means all types
	Channel      chan Event
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a new event hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new event hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	return &Hub{
		config:    config,
		eventChan: make(chan Event, config.BufferSize),
		done:      make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop()
}

// broadcastLoop distributes events to subscribers and consumers.
func (h *Hub) broadcastLoop() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.eventChan:
			h.metricsMu.Lock()
			h.eventsReceived++
			h.metricsMu.Unlock()

			h.broadcast(ev)
			h.notifyConsumers(ev)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}

	close(h.done)
	h.started = false
	h.done = make(chan struct{}) // reset for next start

	for _, sub := range h.subscribers {
		close(sub.Channel)
	}
	h.subscribers = nil
}

// Subscribe adds a subscriber and returns a channel to receive events.
// With no types given, the subscriber receives every event.
func (h *Hub) Subscribe(types ...EventType) <-chan Event {
	return h.SubscribeWithID("", types...)
}

// SubscribeWithID adds a subscriber with a specific ID.
func (h *Hub) SubscribeWithID(id string, types ...EventType) <-chan Event {
	ch := make(chan Event, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}
	if len(types) > 0 {
		sub.Types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.Types[t] = true
		}
	}

	h.mu.Lock()
	h.subscribers = append(h.subscribers, sub)
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to the hub for distribution.
// Non-blocking: if the internal buffer is full, the event is dropped.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.eventChan <- ev:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

// broadcast sends an event to all matching subscribers.
// Uses non-blocking sends so slow consumers cannot block others.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	subs := make([]*Subscriber, len(h.subscribers))
	copy(subs, h.subscribers)
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.Types != nil && !sub.Types[ev.Type] {
			continue
		}
		select {
		case sub.Channel <- ev:
			h.metricsMu.Lock()
			h.eventsBroadcast++
			h.metricsMu.Unlock()
		default:
			sub.DroppedCount++
			h.metricsMu.Lock()
			h.eventsDropped++
			h.metricsMu.Unlock()
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Metrics returns hub metrics.
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()

	return HubMetrics{
		EventsReceived:  h.eventsReceived,
		EventsBroadcast: h.eventsBroadcast,
		EventsDropped:   h.eventsDropped,
		Subscribers:     h.SubscriberCount(),
	}
}

// HubMetrics contains hub performance metrics.
type HubMetrics struct {
	EventsReceived  uint64
	EventsBroadcast uint64
	EventsDropped   uint64
	Subscribers     int
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Consumer represents an event consumer that processes events.
type Consumer interface {
	// OnEvent is called when a new event is received.
	OnEvent(ev Event)
	// Types returns the event types this consumer is interested in.
	// Return nil or an empty slice to receive all events.
	Types() []EventType
}

// RegisterConsumer adds a consumer to receive events.
// Each delivery runs in its own goroutine.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	h.consumers = append(h.consumers, consumer)
	h.consumersMu.Unlock()
}

// UnregisterConsumer removes a consumer.
func (h *Hub) UnregisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()

	for i, c := range h.consumers {
		if c == consumer {
			h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
			break
		}
	}
}

// notifyConsumers sends an event to all registered consumers.
func (h *Hub) notifyConsumers(ev Event) {
	h.consumersMu.RLock()
	consumers := make([]Consumer, len(h.consumers))
	copy(consumers, h.consumers)
	h.consumersMu.RUnlock()

	for _, consumer := range consumers {
		types := consumer.Types()
		if len(types) == 0 || containsType(types, ev.Type) {
			go consumer.OnEvent(ev)
		}
	}
}

// containsType checks if a type is in the list.
func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// ConsumerFunc is a function adapter for the Consumer interface.
type ConsumerFunc struct {
	types     []EventType
	onEventFn func(Event)
}

// NewConsumerFunc creates a new ConsumerFunc.
func NewConsumerFunc(types []EventType, onEvent func(Event)) *ConsumerFunc {
	return &ConsumerFunc{
		types:     types,
		onEventFn: onEvent,
	}
}

// OnEvent implements Consumer.
func (c *ConsumerFunc) OnEvent(ev Event) {
	if c.onEventFn != nil {
		c.onEventFn(ev)
	}
}

// Types implements Consumer.
func (c *ConsumerFunc) Types() []EventType {
	return c.types
}
