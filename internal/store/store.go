// Package store provides audit persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"yield-pilot/internal/models"
	"yield-pilot/internal/stream"
)

// DecisionContext carries the controller context recorded alongside a
// decision.
type DecisionContext struct {
	SessionID      string
	Mode           models.Mode
	PortfolioValue float64
}

// AuditStore defines the audit persistence contract. All writes are
// best-effort from the controller's point of view: a failing store is
// logged and never stalls the control loop.
type AuditStore interface {
	RecordDecision(ctx context.Context, decision *models.Decision, dctx DecisionContext) error
	RecordTrade(ctx context.Context, trade *models.PendingTrade) error
	RecordEvent(ctx context.Context, ev stream.Event) error

	GetDecisions(ctx context.Context, filter DecisionFilter) ([]DecisionRecord, error)
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.PendingTrade, error)

	Close() error
}

// DecisionRecord is a persisted decision with its recording context.
type DecisionRecord struct {
	Decision models.Decision
	Context  DecisionContext
}

// DecisionFilter narrows decision queries.
type DecisionFilter struct {
	SessionID string
	Type      models.DecisionType
	From      time.Time
	To        time.Time
	Limit     int
}

// TradeFilter narrows trade queries.
type TradeFilter struct {
	Status models.TradeStatus
	From   time.Time
	To     time.Time
	Limit  int
}

// EventRecorder is a stream consumer that persists every controller event.
// Register it on the hub to get a durable event trail.
type EventRecorder struct {
	store AuditStore
}

// NewEventRecorder creates an event recorder backed by the given store.
func NewEventRecorder(store AuditStore) *EventRecorder {
	return &EventRecorder{store: store}
}

// OnEvent implements stream.Consumer.
func (r *EventRecorder) OnEvent(ev stream.Event) {
	// Best-effort by contract; the hub already decouples us from the loop.
	_ = r.store.RecordEvent(context.Background(), ev)
}

// Types implements stream.Consumer. The recorder wants every event.
func (r *EventRecorder) Types() []stream.EventType {
	return nil
}
