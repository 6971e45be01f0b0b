package registrymem

import (
	"context"
	"sync"

	"zkcred/internal/domain"
	"zkcred/internal/usecase"

	"github.com/google/uuid"
)

type Events struct {
	mu     sync.RWMutex
	events map[string][]domain.CircuitEvent
}

func NewEvents() *Events {
	return &Events{events: make(map[string][]domain.CircuitEvent)}
}

func (e *Events) Append(ctx context.Context, event domain.CircuitEvent) (domain.CircuitEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.CircuitEvent{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events[event.CircuitID] = append(e.events[event.CircuitID], event)
	return event, nil
}

func (e *Events) ListByCircuit(ctx context.Context, circuitID string) ([]domain.CircuitEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.CircuitEvent(nil), e.events[circuitID]...), nil
}

// ProofRecords keeps verification outcomes, newest last.
type ProofRecords struct {
	mu      sync.RWMutex
	records []domain.ProofRecord
}

func NewProofRecords() *ProofRecords {
	return &ProofRecords{}
}

func (p *ProofRecords) Save(ctx context.Context, rec domain.ProofRecord) (domain.ProofRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProofRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Reasons = append([]domain.Reason(nil), rec.Reasons...)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return rec, nil
}

// ListByCircuit returns up to limit records for circuitID, newest first.
func (p *ProofRecords) ListByCircuit(ctx context.Context, circuitID string, limit int) ([]domain.ProofRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.ProofRecord, 0)
	for i := len(p.records) - 1; i >= 0; i-- {
		if p.records[i].CircuitID != circuitID {
			continue
		}
		out = append(out, p.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ usecase.CircuitEventRepository = (*Events)(nil)
	_ usecase.ProofRecordRepository  = (*ProofRecords)(nil)
)
