// Package controller provides the supervised trading control loop.
package controller

import (
	"fmt"
	"time"

	"yield-pilot/internal/config"
)

// GateState is the snapshot of counters the execution gate checks against.
type GateState struct {
	TotalVolumeToday    float64
	TradesExecutedToday int
	ConsecutiveLosses   int
	LastTradeTime       time.Time
	CurrentDrawdown     float64
	Paused              bool
}

// GateResult is the outcome of an execution gate check. Exactly one of
// Allow, Defer, or a block applies: a deferred trade stays approved and is
// retried on a later tick; a blocked trade is marked failed; a tripped
// breaker additionally pauses the controller.
type GateResult struct {
	Allow         bool
	Defer         bool
	TripBreaker   bool
	BreakerReason string
	BlockReason   string
	ChecksPassed  []string
	ChecksFailed  []string
}

// CheckGate runs the safety checks that guard every execution, in order.
// The first failing check decides the outcome.
func CheckGate(cfg config.ControllerConfig, state GateState, estimatedValueUsd float64, now time.Time) GateResult {
	result := GateResult{Allow: true}

	// Check 1: cooldown. A trade inside the cooldown window is deferred,
	// not failed; it stays approved for the next eligible tick.
	if cfg.MinTimeBetweenTrades > 0 && !state.LastTradeTime.IsZero() {
		elapsed := now.Sub(state.LastTradeTime)
		if elapsed < cfg.MinTimeBetweenTrades {
			remaining := cfg.MinTimeBetweenTrades - elapsed
			result.Allow = false
			result.Defer = true
			result.BlockReason = fmt.Sprintf("cooldown active: %.0f seconds remaining", remaining.Seconds())
			result.ChecksFailed = append(result.ChecksFailed, "cooldown")
			return result
		}
	}
	result.ChecksPassed = append(result.ChecksPassed, "cooldown")

	// Check 2: daily volume cap.
	if state.TotalVolumeToday+estimatedValueUsd > cfg.MaxDailyTradesUsd {
		result.Allow = false
		result.BlockReason = "daily volume limit exceeded"
		result.ChecksFailed = append(result.ChecksFailed, "daily_volume")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "daily_volume")

	// Check 3: circuit breaker conditions. Any of these pauses the
	// controller and aborts the trade.
	// Strictly greater, matching the portfolio-refresh breaker: a drawdown
	// sitting exactly at the limit has not yet exceeded it.
	if state.CurrentDrawdown > cfg.MaxDrawdownPercent {
		result.Allow = false
		result.TripBreaker = true
		result.BreakerReason = fmt.Sprintf("Circuit breaker: drawdown %.1f%% exceeds %.1f%% limit",
			state.CurrentDrawdown, cfg.MaxDrawdownPercent)
		result.BlockReason = result.BreakerReason
		result.ChecksFailed = append(result.ChecksFailed, "drawdown")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "drawdown")

	if state.ConsecutiveLosses >= cfg.MaxConsecutiveLosses {
		result.Allow = false
		result.TripBreaker = true
		result.BreakerReason = fmt.Sprintf("Circuit breaker: %d consecutive losses", state.ConsecutiveLosses)
		result.BlockReason = result.BreakerReason
		result.ChecksFailed = append(result.ChecksFailed, "consecutive_losses")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "consecutive_losses")

	if state.Paused {
		result.Allow = false
		result.BlockReason = "controller is paused"
		result.ChecksFailed = append(result.ChecksFailed, "paused")
		return result
	}
	result.ChecksPassed = append(result.ChecksPassed, "paused")

	return result
}
