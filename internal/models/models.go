// Package models provides domain models for the yield control loop.
package models

import (
	"time"
)

// RiskBucket is the coarse risk classification attached by the fetch layer.
type RiskBucket string

const (
	RiskBucketLow    RiskBucket = "low"
	RiskBucketMedium RiskBucket = "medium"
	RiskBucketHigh   RiskBucket = "high"
)

// YieldOpportunity represents a single yield venue as reported by the
// external fetch layer. Immutable for the duration of a refresh cycle.
type YieldOpportunity struct {
	Protocol   string
	Asset      string
	APY        float64 // total annualized yield, percent
	BaseAPY    float64 // organic portion of APY
	RewardAPY  float64 // reward-token portion of APY
	TVLUsd     float64
	RiskBucket RiskBucket
}

// RewardShare returns the fraction of total APY paid in reward tokens.
func (o YieldOpportunity) RewardShare() float64 {
	if o.APY <= 0 {
		return 0
	}
	return o.RewardAPY / o.APY
}

// RiskFactors holds the five component risk scores, each in [0, 100].
type RiskFactors struct {
	SmartContract   int
	Liquidity       int
	Sustainability  int
	Counterparty    int
	AssetVolatility int
}

// RiskScore is the full risk assessment of a yield opportunity.
// Overall is the fixed weighted sum of the five factors.
type RiskScore struct {
	Overall    int // 0-100, higher is riskier
	Factors    RiskFactors
	Confidence float64 // 0-1
	Warnings   []string
	Positives  []string
}

// RecommendationTier classifies an opportunity after risk adjustment.
type RecommendationTier string

const (
	TierStrong   RecommendationTier = "strong"
	TierModerate RecommendationTier = "moderate"
	TierWeak     RecommendationTier = "weak"
	TierAvoid    RecommendationTier = "avoid"
)

// RiskAdjustedOpportunity is a scored opportunity with comparable metrics.
type RiskAdjustedOpportunity struct {
	YieldOpportunity
	Risk        RiskScore
	AdjustedAPY float64
	SharpeRatio float64
	Tier        RecommendationTier
}

// Position represents a capital allocation in a single protocol/asset pair.
type Position struct {
	Protocol   string
	Asset      string
	Amount     float64
	ValueUsd   float64
	CurrentAPY float64
	EntryTime  time.Time
}

// Portfolio is a snapshot of all current positions.
type Portfolio struct {
	Positions []Position
}

// TotalValue returns the sum of position values in USD.
func (p Portfolio) TotalValue() float64 {
	var total float64
	for _, pos := range p.Positions {
		total += pos.ValueUsd
	}
	return total
}

// WeightedAPY returns the value-weighted APY of the portfolio,
// or 0 for an empty portfolio.
func (p Portfolio) WeightedAPY() float64 {
	total := p.TotalValue()
	if total == 0 {
		return 0
	}
	var weighted float64
	for _, pos := range p.Positions {
		weighted += pos.CurrentAPY * pos.ValueUsd
	}
	return weighted / total
}

// ProtocolValue returns the total USD value held in a protocol.
func (p Portfolio) ProtocolValue(protocol string) float64 {
	var total float64
	for _, pos := range p.Positions {
		if pos.Protocol == protocol {
			total += pos.ValueUsd
		}
	}
	return total
}

// RiskTolerance bounds the acceptable overall risk score of opportunities.
type RiskTolerance string

const (
	ToleranceLow    RiskTolerance = "low"
	ToleranceMedium RiskTolerance = "medium"
	ToleranceHigh   RiskTolerance = "high"
)

// MaxRiskScore returns the maximum acceptable overall risk score
// for the tolerance level.
func (t RiskTolerance) MaxRiskScore() int {
	switch t {
	case ToleranceLow:
		return 35
	case ToleranceHigh:
		return 75
	default:
		return 55
	}
}

// Valid reports whether the tolerance is a known level.
func (t RiskTolerance) Valid() bool {
	switch t {
	case ToleranceLow, ToleranceMedium, ToleranceHigh:
		return true
	}
	return false
}

// StrategyConfig holds the strategy parameters consumed by the decision engine.
type StrategyConfig struct {
	RiskTolerance            RiskTolerance
	RebalanceThreshold       float64 // min adjusted-APY improvement (pct points) to act
	MaxProtocolConcentration float64 // 0-1 fraction of portfolio per protocol
	MaxSlippageBps           int
}

// EffectiveThreshold returns the rebalance threshold floored at 1.0.
func (c StrategyConfig) EffectiveThreshold() float64 {
	if c.RebalanceThreshold < 1.0 {
		return 1.0
	}
	return c.RebalanceThreshold
}
