// Package engine provides the decision engine that turns ranked yield
// opportunities and current holdings into a proposed action.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"yield-pilot/internal/models"
)

// Discount applied to the raw APY of a held position that no longer appears
// in the current opportunity list. A conservative proxy for its adjusted APY.
const unmatchedAPYDiscount = 0.7

// Confidence bounds for any decision.
const (
	minConfidence = 0.3
	maxConfidence = 0.95
)

// Engine is the pure decision component. It only returns intent; it never
// calls an executor.
type Engine struct{}

// New creates a new decision engine.
func New() *Engine {
	return &Engine{}
}

// Decide evaluates the portfolio against the ranked opportunity list and
// returns a single decision. Decision types are mutually exclusive and total.
func (e *Engine) Decide(portfolio models.Portfolio, ranked []models.RiskAdjustedOpportunity, cfg models.StrategyConfig) models.Decision {
	eligible := filterByTolerance(ranked, cfg.RiskTolerance)
	if len(eligible) == 0 {
		return newDecision(models.DecisionHold, nil, 0.9,
			"no opportunities within risk tolerance",
			models.RiskAnalysis{Change: models.RiskUnchanged})
	}

	best := eligible[0]
	totalValue := portfolio.TotalValue()

	if totalValue == 0 {
		action := models.RebalanceAction{
			Type: models.ActionDeposit,
			To: &models.ActionTarget{
				Protocol: best.Protocol,
				Asset:    best.Asset,
			},
			ExpectedAPYGain: best.AdjustedAPY,
		}
		reasoning := fmt.Sprintf("portfolio is empty; entering top opportunity %s/%s at %.2f%% adjusted APY",
			best.Protocol, best.Asset, best.AdjustedAPY)
		return newDecision(models.DecisionEnter, []models.RebalanceAction{action}, 0.8, reasoning,
			models.RiskAnalysis{
				ProposedRiskScore: best.Risk.Overall,
				Change:            models.RiskIncreased,
			})
	}

	currentAdjusted, currentRisk := currentMetrics(portfolio, eligible)

	improvement := best.AdjustedAPY - currentAdjusted
	threshold := cfg.EffectiveThreshold()
	if improvement < threshold {
		reasoning := fmt.Sprintf("best opportunity improves adjusted APY by %.2f points, below the %.2f threshold",
			improvement, threshold)
		return newDecision(models.DecisionHold, nil, 0.7, reasoning,
			models.RiskAnalysis{
				CurrentRiskScore:  currentRisk,
				ProposedRiskScore: currentRisk,
				Change:            models.RiskUnchanged,
			})
	}

	actions, notes := proposeMoves(portfolio, best, eligible, cfg, threshold)

	analysis := models.RiskAnalysis{
		CurrentRiskScore:  currentRisk,
		ProposedRiskScore: currentRisk,
		Change:            models.RiskUnchanged,
	}
	if len(actions) > 0 {
		analysis.ProposedRiskScore = best.Risk.Overall
		analysis.Change = riskChange(currentRisk, best.Risk.Overall)
	}

	if len(actions) == 0 {
		reasoning := "rebalance blocked: " + strings.Join(notes, "; ")
		return newDecision(models.DecisionHold, nil, 0.7, reasoning, analysis)
	}

	notes = append([]string{fmt.Sprintf("moving capital to %s/%s for a %.2f point adjusted APY improvement",
		best.Protocol, best.Asset, improvement)}, notes...)

	return newDecision(models.DecisionRebalance, actions,
		rebalanceConfidence(analysis.Change, best.TVLUsd),
		strings.Join(notes, "; "), analysis)
}

// filterByTolerance drops opportunities above the tolerance's max risk score.
func filterByTolerance(ranked []models.RiskAdjustedOpportunity, tolerance models.RiskTolerance) []models.RiskAdjustedOpportunity {
	maxScore := tolerance.MaxRiskScore()
	eligible := make([]models.RiskAdjustedOpportunity, 0, len(ranked))
	for _, opp := range ranked {
		if opp.Risk.Overall <= maxScore {
			eligible = append(eligible, opp)
		}
	}
	return eligible
}

// currentMetrics returns the value-weighted adjusted APY and risk score of
// the existing positions, matched against the current opportunity list.
func currentMetrics(portfolio models.Portfolio, opps []models.RiskAdjustedOpportunity) (apy float64, risk int) {
	totalValue := portfolio.TotalValue()
	if totalValue == 0 {
		return 0, 0
	}

	var weightedAPY, weightedRisk float64
	for _, pos := range portfolio.Positions {
		posAPY, posRisk := positionMetrics(pos, opps)
		weightedAPY += posAPY * pos.ValueUsd
		weightedRisk += float64(posRisk) * pos.ValueUsd
	}
	return weightedAPY / totalValue, int(weightedRisk/totalValue + 0.5)
}

// positionMetrics resolves a single position against the opportunity list.
// A position with no match gets its raw APY discounted as a conservative
// proxy, and a neutral risk score.
func positionMetrics(pos models.Position, opps []models.RiskAdjustedOpportunity) (float64, int) {
	if match := findMatch(pos, opps); match != nil {
		return match.AdjustedAPY, match.Risk.Overall
	}
	return pos.CurrentAPY * unmatchedAPYDiscount, 50
}

// findMatch locates the opportunity backing a position, if any.
func findMatch(pos models.Position, opps []models.RiskAdjustedOpportunity) *models.RiskAdjustedOpportunity {
	for i := range opps {
		if opps[i].Protocol == pos.Protocol && opps[i].Asset == pos.Asset {
			return &opps[i]
		}
	}
	return nil
}

// proposeMoves builds withdraw/deposit pairs for every position beaten by the
// best opportunity, skipping moves that would breach the protocol
// concentration cap. Skips are reported, never partial-filled.
func proposeMoves(portfolio models.Portfolio, best models.RiskAdjustedOpportunity, opps []models.RiskAdjustedOpportunity, cfg models.StrategyConfig, threshold float64) ([]models.RebalanceAction, []string) {
	totalValue := portfolio.TotalValue()
	targetValue := portfolio.ProtocolValue(best.Protocol)

	var actions []models.RebalanceAction
	var notes []string

	for _, pos := range portfolio.Positions {
		if pos.Protocol == best.Protocol && pos.Asset == best.Asset {
			continue
		}

		posAPY, _ := positionMetrics(pos, opps)
		gain := best.AdjustedAPY - posAPY
		if gain < threshold {
			continue
		}

		// A position already held in the best protocol does not add to its
		// concentration when moved within it.
		projected := targetValue + pos.ValueUsd
		if pos.Protocol == best.Protocol {
			projected = targetValue
		}

		if cfg.MaxProtocolConcentration > 0 {
			share := projected / totalValue
			if share > cfg.MaxProtocolConcentration {
				notes = append(notes, fmt.Sprintf("skipped %s/%s: moving $%.0f would put %.0f%% of the portfolio in %s (cap %.0f%%)",
					pos.Protocol, pos.Asset, pos.ValueUsd, share*100, best.Protocol, cfg.MaxProtocolConcentration*100))
				continue
			}
		}

		targetValue = projected
		actions = append(actions,
			models.RebalanceAction{
				Type: models.ActionWithdraw,
				From: &models.ActionTarget{
					Protocol: pos.Protocol,
					Asset:    pos.Asset,
					Amount:   pos.Amount,
				},
				ValueUsd:        pos.ValueUsd,
				ExpectedAPYGain: gain,
			},
			models.RebalanceAction{
				Type: models.ActionDeposit,
				To: &models.ActionTarget{
					Protocol: best.Protocol,
					Asset:    best.Asset,
				},
				ValueUsd:        pos.ValueUsd,
				ExpectedAPYGain: gain,
			},
		)
	}

	return actions, notes
}

// riskChange compares the current and proposed portfolio risk scores.
func riskChange(current, proposed int) models.RiskChange {
	switch {
	case proposed > current:
		return models.RiskIncreased
	case proposed < current:
		return models.RiskDecreased
	default:
		return models.RiskUnchanged
	}
}

// rebalanceConfidence scales confidence up when risk decreases and down when
// liquidity is thin or risk increases.
func rebalanceConfidence(change models.RiskChange, bestTVL float64) float64 {
	confidence := 0.7
	switch change {
	case models.RiskDecreased:
		confidence += 0.1
	case models.RiskIncreased:
		confidence -= 0.1
	}
	if bestTVL < 1_000_000 {
		confidence -= 0.1
	}
	return clampConfidence(confidence)
}

func clampConfidence(confidence float64) float64 {
	if confidence < minConfidence {
		return minConfidence
	}
	if confidence > maxConfidence {
		return maxConfidence
	}
	return confidence
}

func newDecision(decisionType models.DecisionType, actions []models.RebalanceAction, confidence float64, reasoning string, analysis models.RiskAnalysis) models.Decision {
	return models.Decision{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Type:       decisionType,
		Actions:    actions,
		Reasoning:  reasoning,
		Risk:       analysis,
		Confidence: clampConfidence(confidence),
	}
}
