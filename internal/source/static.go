package source

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"yield-pilot/internal/errors"
	"yield-pilot/internal/models"
	"yield-pilot/internal/risk"
)

// StaticSource is a fixture-backed YieldSource and PortfolioSource for paper
// runs and tests. Raw opportunities are ranked through the scorer on every
// fetch, so paper mode exercises the same scoring path as production.
type StaticSource struct {
	mu            sync.RWMutex
	scorer        *risk.Scorer
	opportunities []models.YieldOpportunity
	portfolio     models.Portfolio
	yieldErr      error
	portfolioErr  error
}

// NewStaticSource creates a static source with the given fixtures.
func NewStaticSource(opps []models.YieldOpportunity, portfolio models.Portfolio) *StaticSource {
	return &StaticSource{
		scorer:        risk.NewScorer(),
		opportunities: opps,
		portfolio:     portfolio,
	}
}

// fixtureFile is the on-disk JSON shape consumed by LoadFile.
type fixtureFile struct {
	Opportunities []models.YieldOpportunity `json:"opportunities"`
	Portfolio     models.Portfolio          `json:"portfolio"`
}

// LoadFile creates a static source from a JSON fixtures file.
func LoadFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDataError("fixtures", "reading file", err)
	}

	var fixtures fixtureFile
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, errors.NewDataError("fixtures", "parsing file", err)
	}

	return NewStaticSource(fixtures.Opportunities, fixtures.Portfolio), nil
}

// FetchRankedYields implements YieldSource.
func (s *StaticSource) FetchRankedYields(ctx context.Context) ([]models.RiskAdjustedOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.yieldErr != nil {
		return nil, s.yieldErr
	}
	return s.scorer.Rank(s.opportunities), nil
}

// FetchPortfolio implements PortfolioSource.
func (s *StaticSource) FetchPortfolio(ctx context.Context) (models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.portfolioErr != nil {
		return models.Portfolio{}, s.portfolioErr
	}
	return s.portfolio, nil
}

// SetOpportunities replaces the opportunity fixtures.
func (s *StaticSource) SetOpportunities(opps []models.YieldOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunities = opps
}

// SetPortfolio replaces the portfolio fixture.
func (s *StaticSource) SetPortfolio(p models.Portfolio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = p
}

// FailYields makes subsequent yield fetches return err (nil to clear).
func (s *StaticSource) FailYields(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.yieldErr = err
}

// FailPortfolio makes subsequent portfolio fetches return err (nil to clear).
func (s *StaticSource) FailPortfolio(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolioErr = err
}
