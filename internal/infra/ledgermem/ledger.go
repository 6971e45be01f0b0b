package ledgermem

import (
	"context"
	"sync"
	"time"

	"zkcred/internal/domain"

	"github.com/google/uuid"
)

// Ledger is a process-local nullifier set. Reservations are serialized by a
// single mutex, which gives the single-writer-wins guarantee directly.
type Ledger struct {
	mu      sync.Mutex
	entries map[domain.FieldElement]domain.LedgerReceipt
	height  int64
	clock   func() time.Time
}

func New() *Ledger {
	return NewWithClock(time.Now)
}

func NewWithClock(clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		entries: make(map[domain.FieldElement]domain.LedgerReceipt),
		clock:   clock,
	}
}

func (l *Ledger) CheckAndReserve(ctx context.Context, n domain.Nullifier) (domain.LedgerReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.LedgerReceipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[n.Value]; ok {
		return domain.LedgerReceipt{}, domain.ErrAlreadyUsed
	}
	l.height++
	receipt := domain.LedgerReceipt{
		ID:         uuid.NewString(),
		Nullifier:  n.Value,
		CircuitID:  n.CircuitID,
		ContextID:  n.ContextID,
		Height:     l.height,
		ReservedAt: l.clock().UTC(),
	}
	l.entries[n.Value] = receipt
	return receipt, nil
}

func (l *Ledger) IsConsumed(ctx context.Context, value domain.FieldElement) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[value]
	return ok, nil
}

func (l *Ledger) Sweep(ctx context.Context, circuitID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed int64
	for value, receipt := range l.entries {
		if receipt.CircuitID == circuitID {
			delete(l.entries, value)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of consumed nullifiers.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ domain.NullifierLedger = (*Ledger)(nil)
