package models

import "time"

// DecisionType classifies the intent produced by the decision engine.
type DecisionType string

const (
	DecisionHold      DecisionType = "hold"
	DecisionEnter     DecisionType = "enter"
	DecisionRebalance DecisionType = "rebalance"
	DecisionExit      DecisionType = "exit"
)

// ActionType is the kind of capital movement an action performs.
type ActionType string

const (
	ActionDeposit  ActionType = "deposit"
	ActionWithdraw ActionType = "withdraw"
	ActionSwap     ActionType = "swap"
)

// ActionTarget identifies one side of a rebalance action.
type ActionTarget struct {
	Protocol string
	Asset    string
	Amount   float64
}

// RebalanceAction is a single proposed capital movement. ValueUsd is the
// USD value being moved; the controller uses it to size trades against the
// approval and volume limits.
type RebalanceAction struct {
	Type            ActionType
	From            *ActionTarget
	To              *ActionTarget
	ValueUsd        float64
	ExpectedAPYGain float64
}

// RiskChange describes the direction of the portfolio risk delta.
type RiskChange string

const (
	RiskIncreased RiskChange = "increased"
	RiskDecreased RiskChange = "decreased"
	RiskUnchanged RiskChange = "unchanged"
)

// RiskAnalysis summarizes the risk delta implied by a decision.
type RiskAnalysis struct {
	CurrentRiskScore  int
	ProposedRiskScore int
	Change            RiskChange
}

// Decision is the intent returned by the decision engine. The engine never
// executes anything itself; the controller decides what to do with it.
type Decision struct {
	ID         string
	Timestamp  time.Time
	Type       DecisionType
	Actions    []RebalanceAction
	Reasoning  string
	Risk       RiskAnalysis
	Confidence float64
}

// HasActions reports whether the decision proposes any capital movement.
func (d Decision) HasActions() bool {
	return len(d.Actions) > 0
}
