package risk

import (
	"fmt"
	"math"
	"sort"

	"yield-pilot/internal/models"
)

// Factor weights for the overall risk score. They must sum to 1.0.
const (
	WeightSmartContract   = 0.30
	WeightLiquidity       = 0.20
	WeightSustainability  = 0.20
	WeightCounterparty    = 0.15
	WeightAssetVolatility = 0.15
)

// DefaultRiskFreeRate is the annualized risk-free rate (percent) used for
// the Sharpe-like ratio.
const DefaultRiskFreeRate = 4.0

// Tie-break window for ranking: opportunities whose adjusted APY differs by
// less than this are ordered by Sharpe ratio instead.
const rankTieWindow = 0.5

// Scorer turns raw yield opportunities into risk-adjusted, comparable
// metrics. It is a pure component: no state mutation, no I/O.
type Scorer struct {
	riskFreeRate float64
}

// NewScorer creates a scorer with the default risk-free rate.
func NewScorer() *Scorer {
	return &Scorer{riskFreeRate: DefaultRiskFreeRate}
}

// NewScorerWithRiskFreeRate creates a scorer with a custom risk-free rate.
func NewScorerWithRiskFreeRate(rate float64) *Scorer {
	return &Scorer{riskFreeRate: rate}
}

// Score computes the full risk assessment of an opportunity.
// Unknown protocols are scored against a conservative default profile;
// a missing profile is never an error.
func (s *Scorer) Score(opp models.YieldOpportunity) models.RiskScore {
	profile, known := ProfileFor(opp.Protocol)

	var warnings, positives []string

	smartContract := s.scoreSmartContract(profile, &warnings, &positives)
	liquidity := s.scoreLiquidity(opp.TVLUsd, &warnings, &positives)
	sustainability := s.scoreSustainability(opp, &warnings, &positives)
	counterparty := s.scoreCounterparty(profile, &warnings, &positives)
	volatility := s.scoreAssetVolatility(opp.Asset, &warnings, &positives)

	if !known {
		warnings = append(warnings, fmt.Sprintf("unknown protocol %q, using conservative default profile", opp.Protocol))
	}

	factors := models.RiskFactors{
		SmartContract:   smartContract,
		Liquidity:       liquidity,
		Sustainability:  sustainability,
		Counterparty:    counterparty,
		AssetVolatility: volatility,
	}

	return models.RiskScore{
		Overall:    weightedOverall(factors),
		Factors:    factors,
		Confidence: s.confidence(known, opp.TVLUsd),
		Warnings:   warnings,
		Positives:  positives,
	}
}

// weightedOverall computes the fixed weighted sum of the five factors.
func weightedOverall(f models.RiskFactors) int {
	sum := float64(f.SmartContract)*WeightSmartContract +
		float64(f.Liquidity)*WeightLiquidity +
		float64(f.Sustainability)*WeightSustainability +
		float64(f.Counterparty)*WeightCounterparty +
		float64(f.AssetVolatility)*WeightAssetVolatility
	return int(math.Round(clamp(sum, 0, 100)))
}

// scoreSmartContract rises for unaudited protocols, recent incidents,
// and young protocols.
func (s *Scorer) scoreSmartContract(p ProtocolProfile, warnings, positives *[]string) int {
	score := float64(p.BaseRisk)

	if !p.Audited {
		score += 15
		*warnings = append(*warnings, "protocol has no public audit")
	} else {
		*positives = append(*positives, "protocol is audited")
	}

	if p.LastIncidentDaysAgo > 0 {
		switch {
		case p.LastIncidentDaysAgo < 365:
			score += 20
			*warnings = append(*warnings, "security incident within the last year")
		case p.LastIncidentDaysAgo < 730:
			score += 10
			*warnings = append(*warnings, "security incident within the last two years")
		}
	}

	switch {
	case p.AgeDays < 180:
		score += 25
		*warnings = append(*warnings, "protocol younger than 6 months")
	case p.AgeDays > 730:
		score -= 10
		*positives = append(*positives, "protocol live for over 2 years")
	}

	return int(clamp(score, 0, 100))
}

// scoreLiquidity is a step function of TVL, six bands.
func (s *Scorer) scoreLiquidity(tvlUsd float64, warnings, positives *[]string) int {
	var score int
	switch {
	case tvlUsd < 100_000:
		score = 90
		*warnings = append(*warnings, "TVL below $100K, exits may be impossible at size")
	case tvlUsd < 1_000_000:
		score = 70
		*warnings = append(*warnings, "TVL below $1M, thin liquidity")
	case tvlUsd < 10_000_000:
		score = 50
	case tvlUsd < 50_000_000:
		score = 30
	case tvlUsd < 100_000_000:
		score = 20
	default:
		score = 10
		*positives = append(*positives, "TVL above $100M")
	}
	return score
}

// scoreSustainability rises with raw APY and with reward-token dominance.
func (s *Scorer) scoreSustainability(opp models.YieldOpportunity, warnings, positives *[]string) int {
	var score float64
	switch {
	case opp.APY > 100:
		score = 90
		*warnings = append(*warnings, "triple-digit APY is almost certainly transient")
	case opp.APY > 50:
		score = 70
		*warnings = append(*warnings, "APY above 50% is unlikely to be sustainable")
	case opp.APY > 25:
		score = 40
	case opp.APY > 10:
		score = 20
	default:
		score = 10
		*positives = append(*positives, "yield in a sustainable range")
	}

	if opp.RewardShare() > 0.8 {
		score += 20
		*warnings = append(*warnings, "yield dominated by reward-token emissions")
	}

	return int(clamp(score, 0, 100))
}

// scoreCounterparty derives from the centralization tier and the absence
// of an insurance fund.
func (s *Scorer) scoreCounterparty(p ProtocolProfile, warnings, positives *[]string) int {
	var score float64
	switch p.Centralization {
	case CentralizationLow:
		score = 15
		*positives = append(*positives, "low centralization risk")
	case CentralizationMedium:
		score = 35
	default:
		score = 60
		*warnings = append(*warnings, "highly centralized admin control")
	}

	if !p.InsuranceFund {
		score += 10
	} else {
		*positives = append(*positives, "insurance fund in place")
	}

	return int(clamp(score, 0, 100))
}

// scoreAssetVolatility is low for stablecoins, medium for majors,
// high for unknown assets.
func (s *Scorer) scoreAssetVolatility(asset string, warnings, positives *[]string) int {
	switch ClassifyAsset(asset) {
	case AssetStable:
		*positives = append(*positives, "stablecoin position")
		return 10
	case AssetMajor:
		if IsLiquidStakingToken(asset) {
			return 40
		}
		return 35
	default:
		*warnings = append(*warnings, "volatile or unrecognized asset")
		return 65
	}
}

// confidence reflects how much the scorer trusts its own inputs.
func (s *Scorer) confidence(knownProtocol bool, tvlUsd float64) float64 {
	confidence := 0.85
	if !knownProtocol {
		confidence = 0.45
	}
	if tvlUsd < 1_000_000 {
		confidence -= 0.15
	} else if tvlUsd > 100_000_000 {
		confidence += 0.10
	}
	return clamp(confidence, 0.2, 0.95)
}

// Adjust scores an opportunity and derives its comparable metrics.
func (s *Scorer) Adjust(opp models.YieldOpportunity) models.RiskAdjustedOpportunity {
	score := s.Score(opp)

	adjusted := AdjustedAPY(opp.APY, score.Overall)
	sharpe := s.sharpeRatio(opp.APY, score.Overall)

	return models.RiskAdjustedOpportunity{
		YieldOpportunity: opp,
		Risk:             score,
		AdjustedAPY:      adjusted,
		SharpeRatio:      sharpe,
		Tier:             recommendationTier(score.Overall, adjusted, sharpe),
	}
}

// AdjustedAPY discounts a raw APY by the overall risk score, clamped at 0.
func AdjustedAPY(apy float64, overall int) float64 {
	adjusted := apy * (1 - float64(overall)/200)
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// sharpeRatio is excess return over the risk-free rate divided by a risk
// measure. Overall is floored at 1 to avoid dividing by zero.
func (s *Scorer) sharpeRatio(apy float64, overall int) float64 {
	if overall < 1 {
		overall = 1
	}
	return (apy - s.riskFreeRate) / (float64(overall) / 10)
}

// recommendationTier classifies a scored opportunity.
func recommendationTier(overall int, adjustedAPY, sharpe float64) models.RecommendationTier {
	switch {
	case overall > 70:
		return models.TierAvoid
	case overall > 55:
		return models.TierWeak
	case sharpe > 3 && adjustedAPY > 8 && overall < 35:
		return models.TierStrong
	case sharpe > 2 && adjustedAPY > 5:
		return models.TierModerate
	default:
		return models.TierWeak
	}
}

// Rank scores a batch of opportunities and sorts them descending by adjusted
// APY. Ties within the tie-break window are ordered by Sharpe ratio.
func (s *Scorer) Rank(opps []models.YieldOpportunity) []models.RiskAdjustedOpportunity {
	ranked := make([]models.RiskAdjustedOpportunity, 0, len(opps))
	for _, opp := range opps {
		ranked = append(ranked, s.Adjust(opp))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if math.Abs(a.AdjustedAPY-b.AdjustedAPY) < rankTieWindow {
			return a.SharpeRatio > b.SharpeRatio
		}
		return a.AdjustedAPY > b.AdjustedAPY
	})

	return ranked
}

// clamp restricts a value to the given range.
func clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
