package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yield-pilot/internal/models"
)

func TestFactorWeightsSumToOne(t *testing.T) {
	sum := WeightSmartContract + WeightLiquidity + WeightSustainability +
		WeightCounterparty + WeightAssetVolatility
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestScoreKnownStableOpportunity(t *testing.T) {
	scorer := NewScorer()

	score := scorer.Score(models.YieldOpportunity{
		Protocol:  "kamino",
		Asset:     "USDC",
		APY:       8.0,
		BaseAPY:   7.0,
		RewardAPY: 1.0,
		TVLUsd:    200_000_000,
	})

	// kamino: base 20, audited, >2y old, no incidents -> 10
	assert.Equal(t, 10, score.Factors.SmartContract)
	assert.Equal(t, 10, score.Factors.Liquidity)
	assert.Equal(t, 10, score.Factors.Sustainability)
	// medium centralization, no insurance fund
	assert.Equal(t, 45, score.Factors.Counterparty)
	assert.Equal(t, 10, score.Factors.AssetVolatility)

	assert.Equal(t, 15, score.Overall)
	assert.InDelta(t, 0.95, score.Confidence, 1e-9)
	assert.NotEmpty(t, score.Positives)
}

func TestScoreUnknownProtocolIsConservative(t *testing.T) {
	scorer := NewScorer()

	score := scorer.Score(models.YieldOpportunity{
		Protocol:  "degenfarm",
		Asset:     "BONK",
		APY:       150.0,
		BaseAPY:   10.0,
		RewardAPY: 140.0,
		TVLUsd:    50_000,
	})

	// default profile: base 70, unaudited +15, young +25, clamped
	assert.Equal(t, 100, score.Factors.SmartContract)
	assert.Equal(t, 90, score.Factors.Liquidity)
	// triple-digit APY 90, reward dominance +20, clamped
	assert.Equal(t, 100, score.Factors.Sustainability)
	assert.Equal(t, 70, score.Factors.Counterparty)
	assert.Equal(t, 65, score.Factors.AssetVolatility)

	assert.Equal(t, 88, score.Overall)
	assert.InDelta(t, 0.30, score.Confidence, 1e-9)

	found := false
	for _, w := range score.Warnings {
		if w == `unknown protocol "degenfarm", using conservative default profile` {
			found = true
		}
	}
	assert.True(t, found, "expected unknown-protocol warning, got %v", score.Warnings)
}

func TestScoreRecentIncidentPenalty(t *testing.T) {
	scorer := NewScorer()

	// raydium: base 25, audited, old (-10), incident 600 days ago (+10) -> 25
	score := scorer.Score(models.YieldOpportunity{
		Protocol: "raydium",
		Asset:    "SOL",
		APY:      6.0,
		BaseAPY:  6.0,
		TVLUsd:   80_000_000,
	})
	assert.Equal(t, 25, score.Factors.SmartContract)

	// solend's incident is over two years old, no penalty: base 25, -10 age
	score = scorer.Score(models.YieldOpportunity{
		Protocol: "solend",
		Asset:    "SOL",
		APY:      6.0,
		BaseAPY:  6.0,
		TVLUsd:   80_000_000,
	})
	assert.Equal(t, 15, score.Factors.SmartContract)
}

func TestAdjustedAPY(t *testing.T) {
	assert.InDelta(t, 7.4, AdjustedAPY(8.0, 15), 1e-9)
	assert.InDelta(t, 5.0, AdjustedAPY(10.0, 100), 1e-9)
	assert.InDelta(t, 0, AdjustedAPY(0, 50), 1e-9)
	// negative raw APY clamps at zero
	assert.InDelta(t, 0, AdjustedAPY(-2.0, 50), 1e-9)
}

func TestAdjustDerivesComparableMetrics(t *testing.T) {
	scorer := NewScorer()

	adjusted := scorer.Adjust(models.YieldOpportunity{
		Protocol:  "kamino",
		Asset:     "USDC",
		APY:       8.0,
		BaseAPY:   7.0,
		RewardAPY: 1.0,
		TVLUsd:    200_000_000,
	})

	require.Equal(t, 15, adjusted.Risk.Overall)
	assert.InDelta(t, 7.4, adjusted.AdjustedAPY, 1e-9)
	// (8 - 4) / (15 / 10)
	assert.InDelta(t, 2.6667, adjusted.SharpeRatio, 1e-3)
	assert.Equal(t, models.TierModerate, adjusted.Tier)
}

func TestAdjustAvoidTier(t *testing.T) {
	scorer := NewScorer()

	adjusted := scorer.Adjust(models.YieldOpportunity{
		Protocol:  "degenfarm",
		Asset:     "BONK",
		APY:       150.0,
		RewardAPY: 140.0,
		TVLUsd:    50_000,
	})
	assert.Equal(t, models.TierAvoid, adjusted.Tier)
}

func TestSharpeRatioFloorsRiskAtOne(t *testing.T) {
	scorer := NewScorerWithRiskFreeRate(4.0)
	// overall 0 floors to 1: (10 - 4) / 0.1 = 60
	assert.InDelta(t, 60.0, scorer.sharpeRatio(10.0, 0), 1e-9)
}

func TestRankOrdersByAdjustedAPY(t *testing.T) {
	scorer := NewScorer()

	ranked := scorer.Rank([]models.YieldOpportunity{
		{Protocol: "lulo", Asset: "USDC", APY: 9.0, BaseAPY: 9.0, TVLUsd: 5_000_000},
		{Protocol: "kamino", Asset: "USDC", APY: 8.0, BaseAPY: 8.0, TVLUsd: 200_000_000},
		{Protocol: "marinade", Asset: "MSOL", APY: 7.0, BaseAPY: 7.0, TVLUsd: 900_000_000},
	})

	require.Len(t, ranked, 3)
	for i := 0; i < len(ranked)-1; i++ {
		assert.GreaterOrEqual(t, ranked[i].AdjustedAPY+rankTieWindow, ranked[i+1].AdjustedAPY,
			"rank %d (%s) should not trail rank %d (%s) by more than the tie window",
			i, ranked[i].Protocol, i+1, ranked[i+1].Protocol)
	}
}

func TestRankTieBreaksOnSharpe(t *testing.T) {
	scorer := NewScorer()

	// Same asset and APY, kamino carries less risk than solend here, so both
	// adjusted APYs land within the tie window and kamino's higher Sharpe
	// ratio should win.
	ranked := scorer.Rank([]models.YieldOpportunity{
		{Protocol: "solend", Asset: "USDC", APY: 6.0, BaseAPY: 6.0, TVLUsd: 60_000_000},
		{Protocol: "kamino", Asset: "USDC", APY: 6.0, BaseAPY: 6.0, TVLUsd: 60_000_000},
	})

	require.Len(t, ranked, 2)
	require.Less(t,
		ranked[0].AdjustedAPY-ranked[1].AdjustedAPY, rankTieWindow,
		"fixture should produce a tie")
	assert.GreaterOrEqual(t, ranked[0].SharpeRatio, ranked[1].SharpeRatio)
}

func TestClassifyAsset(t *testing.T) {
	assert.Equal(t, AssetStable, ClassifyAsset("usdc"))
	assert.Equal(t, AssetMajor, ClassifyAsset("SOL"))
	assert.Equal(t, AssetMajor, ClassifyAsset("jitoSOL"))
	assert.Equal(t, AssetAlt, ClassifyAsset("BONK"))

	assert.True(t, IsLiquidStakingToken("MSOL"))
	assert.False(t, IsLiquidStakingToken("SOL"))
}

func TestProfileForFallsBackToDefault(t *testing.T) {
	profile, known := ProfileFor("KAMINO")
	assert.True(t, known)
	assert.Equal(t, "kamino", profile.Name)

	profile, known = ProfileFor("nosuchprotocol")
	assert.False(t, known)
	assert.Equal(t, defaultProfile, profile)
}
