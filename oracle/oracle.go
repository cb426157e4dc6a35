// Package oracle defines the token balance lookup used for token-weighted
// voting. The governance service depends only on the interface, so tests
// substitute a deterministic stub without touching transition logic.
package oracle

import (
	"context"

	"dao-governance/models"
)

// BalanceOracle answers synchronous token balance queries. An error means
// the balance is unknown; callers must fail closed, never assume zero.
type BalanceOracle interface {
	TokenBalance(ctx context.Context, key models.PublicKey) (uint64, error)
}
