// Package source defines the external data collaborator contracts.
// Real implementations (protocol aggregators, on-chain readers) live outside
// this core; the controller only depends on these interfaces.
package source

import (
	"context"

	"yield-pilot/internal/models"
)

// YieldSource supplies the current ranked yield opportunity set.
// Implementations may fail; the controller retains its previous snapshot.
type YieldSource interface {
	FetchRankedYields(ctx context.Context) ([]models.RiskAdjustedOpportunity, error)
}

// PortfolioSource supplies the current portfolio snapshot.
// Same failure contract as YieldSource.
type PortfolioSource interface {
	FetchPortfolio(ctx context.Context) (models.Portfolio, error)
}
