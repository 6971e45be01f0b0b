package domain

import (
	"context"
	"time"
)

type Nullifier struct {
	Value     FieldElement `json:"value"`
	CircuitID string       `json:"circuit_id"`
	ContextID string       `json:"context_id"`
}

// LedgerReceipt records a nullifier consumption.
type LedgerReceipt struct {
	ID         string       `json:"id"`
	Nullifier  FieldElement `json:"nullifier"`
	CircuitID  string       `json:"circuit_id"`
	ContextID  string       `json:"context_id"`
	Height     int64        `json:"height"`
	ReservedAt time.Time    `json:"reserved_at"`
}

// NullifierLedger is the authoritative nullifier set. CheckAndReserve must be
// atomic: for concurrent reservations of one value exactly one succeeds and
// the others get ErrAlreadyUsed.
type NullifierLedger interface {
	CheckAndReserve(ctx context.Context, n Nullifier) (LedgerReceipt, error)
	IsConsumed(ctx context.Context, value FieldElement) (bool, error)
	Sweep(ctx context.Context, circuitID string) (int64, error)
}
