package models

import "time"

// Mode is the operating mode of the trading controller.
type Mode string

const (
	ModeManual     Mode = "manual"     // alert only
	ModeMonitoring Mode = "monitoring" // alert with full detail, no queueing
	ModeAutonomous Mode = "autonomous" // queue and auto-execute
)

// Valid reports whether the mode is a known operating mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeMonitoring, ModeAutonomous:
		return true
	}
	return false
}

// TradeStatus is the lifecycle state of a pending trade.
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeApproved  TradeStatus = "approved"
	TradeRejected  TradeStatus = "rejected"
	TradeExecuting TradeStatus = "executing"
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TradeStatus) Terminal() bool {
	return s == TradeRejected || s == TradeCompleted || s == TradeFailed
}

// PendingTrade is a queued, supervised unit of execution. A trade carries the
// full action group of one decision step (a withdraw and its matching deposit
// execute atomically through the executor). Trades are never deleted, only
// appended to the controller history.
type PendingTrade struct {
	ID                string
	Timestamp         time.Time
	Actions           []RebalanceAction
	EstimatedValueUsd float64
	Status            TradeStatus
	RequiresApproval  bool
	ApprovedAt        time.Time
	ApprovedBy        string
	ExecutedAt        time.Time
	TxID              string
	Error             string
}

// TradingState is the full observable state of the controller. It is created
// at controller start and reset on restart; the daily counters reset on a
// calendar-day boundary.
type TradingState struct {
	Mode        Mode
	Active      bool
	Paused      bool
	PauseReason string

	TradesExecutedToday int
	TotalVolumeToday    float64
	ConsecutiveLosses   int
	CurrentDrawdown     float64 // percent decline from peak
	PeakValue           float64

	LastDecisionTime time.Time
	LastTradeTime    time.Time

	PendingTrades []PendingTrade
	Portfolio     Portfolio
	CurrentYields []RiskAdjustedOpportunity

	SessionID  string
	CounterDay string // YYYY-MM-DD key the daily counters belong to
}
