package registrymem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/usecase"
)

// Circuits is an in-memory circuit repository for tests and no-db mode.
type Circuits struct {
	mu      sync.RWMutex
	entries map[string]domain.CircuitDescriptor
	height  int64
}

func NewCircuits() *Circuits {
	return &Circuits{entries: make(map[string]domain.CircuitDescriptor)}
}

func (c *Circuits) Create(ctx context.Context, d domain.CircuitDescriptor) (domain.CircuitDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return domain.CircuitDescriptor{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[d.CircuitID]; ok {
		return domain.CircuitDescriptor{}, domain.ErrDuplicateCircuit
	}
	c.height++
	d.RegistrationHeight = c.height
	d.VerifyingKey = append([]byte(nil), d.VerifyingKey...)
	c.entries[d.CircuitID] = d
	return clone(d), nil
}

func (c *Circuits) Get(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[circuitID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(d)
	return &out, nil
}

// UpdateStatus applies the transition only if the stored status still equals from.
func (c *Circuits) UpdateStatus(ctx context.Context, circuitID string, from, to domain.CircuitStatus, reason string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[circuitID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Status != from {
		return fmt.Errorf("%w: status changed concurrently to %s", domain.ErrInvalidTransition, d.Status)
	}
	d.Status = to
	d.StatusReason = reason
	d.UpdatedAt = at
	c.entries[circuitID] = d
	return nil
}

func (c *Circuits) List(ctx context.Context) ([]domain.CircuitDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CircuitDescriptor, 0, len(c.entries))
	for _, d := range c.entries {
		out = append(out, clone(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationHeight < out[j].RegistrationHeight })
	return out, nil
}

func clone(d domain.CircuitDescriptor) domain.CircuitDescriptor {
	d.VerifyingKey = append([]byte(nil), d.VerifyingKey...)
	d.PublicInputSchema = append([]domain.FieldSpec(nil), d.PublicInputSchema...)
	d.Predicate.Private = append([]string(nil), d.Predicate.Private...)
	return d
}

var _ usecase.CircuitRepository = (*Circuits)(nil)
