package controller

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_GateOutcomesAreExclusive checks that every gate check yields
// exactly one outcome: allow, defer, or block (with or without a breaker).
func TestProperty_GateOutcomesAreExclusive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("exactly one of allow, defer, block", prop.ForAll(
		func(volumeToday, drawdown, estimated float64, losses, cooldownSecs int, paused bool) bool {
			cfg := gateConfig()
			now := time.Now()
			state := GateState{
				TotalVolumeToday:  volumeToday,
				ConsecutiveLosses: losses,
				CurrentDrawdown:   drawdown,
				Paused:            paused,
			}
			if cooldownSecs > 0 {
				state.LastTradeTime = now.Add(-time.Duration(cooldownSecs) * time.Second)
			}

			result := CheckGate(cfg, state, estimated, now)

			if result.Allow {
				return !result.Defer && !result.TripBreaker &&
					result.BlockReason == "" && len(result.ChecksFailed) == 0
			}
			if result.Defer {
				return !result.TripBreaker && result.BlockReason != ""
			}
			return result.BlockReason != ""
		},
		gen.Float64Range(0, 200_000),
		gen.Float64Range(0, 50),
		gen.Float64Range(0, 50_000),
		gen.IntRange(0, 10),
		gen.IntRange(0, 3600),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestProperty_GateAllowImpliesAllLimitsRespected checks that an allowed
// trade never violates any configured limit.
func TestProperty_GateAllowImpliesAllLimitsRespected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("allow implies every limit holds", prop.ForAll(
		func(volumeToday, drawdown, estimated float64, losses int, paused bool) bool {
			cfg := gateConfig()
			state := GateState{
				TotalVolumeToday:  volumeToday,
				ConsecutiveLosses: losses,
				CurrentDrawdown:   drawdown,
				Paused:            paused,
			}

			result := CheckGate(cfg, state, estimated, time.Now())
			if !result.Allow {
				return true
			}

			return volumeToday+estimated <= cfg.MaxDailyTradesUsd &&
				drawdown <= cfg.MaxDrawdownPercent &&
				losses < cfg.MaxConsecutiveLosses &&
				!paused
		},
		gen.Float64Range(0, 200_000),
		gen.Float64Range(0, 50),
		gen.Float64Range(0, 50_000),
		gen.IntRange(0, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
