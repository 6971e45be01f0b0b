package usecase

import (
	"context"
	"errors"
	"fmt"

	"zkcred/internal/domain"
	"zkcred/internal/nullifier"
)

// RevocationSweep drops the ledger entries of a revoked circuit. Once swept,
// nullifiers of that circuit no longer block anything, which is harmless
// because the circuit itself rejects every submission.
type RevocationSweep struct {
	Registry   *CircuitRegistry
	Nullifiers *nullifier.Manager
}

func (u *RevocationSweep) Execute(ctx context.Context, circuitID string) (int64, error) {
	if u == nil || u.Registry == nil || u.Nullifiers == nil {
		return 0, errors.New("revocation sweep is not configured")
	}
	d, err := u.Registry.Get(ctx, circuitID)
	if err != nil {
		return 0, err
	}
	if d.Status != domain.CircuitRevoked {
		return 0, fmt.Errorf("%w: circuit %s is %s, not revoked", domain.ErrInvalidTransition, circuitID, d.Status)
	}
	return u.Nullifiers.Sweep(ctx, circuitID)
}
