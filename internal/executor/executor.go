// Package executor defines the trade execution collaborator contract.
// On-chain transaction construction and broadcast live outside this core.
package executor

import (
	"context"

	"yield-pilot/internal/models"
)

// Options carries per-execution parameters.
type Options struct {
	MaxSlippageBps int
}

// Executor carries out a group of rebalance actions and returns one
// transaction ID per submitted transaction. It returns an error on failure;
// the controller never retries automatically. The executor is expected to
// enforce its own timeout.
type Executor interface {
	ExecuteActions(ctx context.Context, actions []models.RebalanceAction, opts Options) ([]string, error)
}
