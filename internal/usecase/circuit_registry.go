package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/zk"

	"github.com/sirupsen/logrus"
)

// CircuitRegistry owns descriptor registration and lifecycle. Reads go
// through an optional cache that every status transition invalidates before
// the new status is written.
type CircuitRegistry struct {
	Circuits CircuitRepository
	Cache    DescriptorCache
	Events   *EventEmitter
	Schemas  *normalize.Normalizer
	CacheTTL time.Duration
	Clock    Clock
	Log      logrus.FieldLogger
}

func NewCircuitRegistry(circuits CircuitRepository, cache DescriptorCache, events *EventEmitter, schemas *normalize.Normalizer, ttl time.Duration, log logrus.FieldLogger) *CircuitRegistry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if events == nil {
		events = NewEventEmitter(nil, nil, log)
	}
	return &CircuitRegistry{
		Circuits: circuits,
		Cache:    cache,
		Events:   events,
		Schemas:  schemas,
		CacheTTL: ttl,
		Log:      log,
	}
}

// Register validates d and stores it as a Draft. The verifying key must
// decode as a Groth16 BN254 key for exactly the declared public inputs.
func (r *CircuitRegistry) Register(ctx context.Context, d domain.CircuitDescriptor) (domain.CircuitDescriptor, error) {
	if r == nil || r.Circuits == nil {
		return domain.CircuitDescriptor{}, errors.New("circuit repository is required")
	}
	if err := d.Validate(); err != nil {
		return domain.CircuitDescriptor{}, err
	}
	if err := zk.MatchesSchema(d.PublicInputSchema); err != nil {
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: %v", domain.ErrInvalidDescriptor, err)
	}
	if d.ProvingScheme == "" {
		d.ProvingScheme = zk.Scheme
	}
	if d.ProvingScheme != zk.Scheme {
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: unsupported proving scheme %q", domain.ErrInvalidDescriptor, d.ProvingScheme)
	}
	vk, err := zk.DecodeVerifyingKey(d.VerifyingKey)
	if err != nil {
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: %v", domain.ErrInvalidDescriptor, err)
	}
	if got := vk.NbPublicWitness(); got != len(d.PublicInputSchema) {
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: verifying key expects %d public inputs, schema declares %d", domain.ErrInvalidDescriptor, got, len(d.PublicInputSchema))
	}
	if r.Schemas != nil {
		if _, err := r.Schemas.PredicateSlots(d.Predicate); err != nil {
			return domain.CircuitDescriptor{}, err
		}
	}
	hash := zk.HashVerifyingKey(d.VerifyingKey)
	if d.VerifyingKeyHash != "" && d.VerifyingKeyHash != hash {
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: verifying key hash mismatch", domain.ErrInvalidDescriptor)
	}
	now := r.now()
	d.VerifyingKeyHash = hash
	d.Status = domain.CircuitDraft
	d.StatusReason = ""
	d.RegistrationHeight = 0
	d.CreatedAt = now
	d.UpdatedAt = now

	stored, err := r.Circuits.Create(ctx, d)
	if err != nil {
		return domain.CircuitDescriptor{}, err
	}
	if err := r.Events.EmitRegistered(ctx, stored); err != nil {
		r.Log.WithError(err).WithField("circuit_id", stored.CircuitID).Error("emit registration event")
	}
	return stored, nil
}

func (r *CircuitRegistry) Activate(ctx context.Context, circuitID, reason string) error {
	return r.transition(ctx, circuitID, domain.CircuitActive, reason)
}

func (r *CircuitRegistry) Deprecate(ctx context.Context, circuitID, reason string) error {
	return r.transition(ctx, circuitID, domain.CircuitDeprecated, reason)
}

// Revoke stops all further verification against the circuit. Results already
// returned for earlier proofs are not revisited.
func (r *CircuitRegistry) Revoke(ctx context.Context, circuitID, reason string) error {
	return r.transition(ctx, circuitID, domain.CircuitRevoked, reason)
}

func (r *CircuitRegistry) transition(ctx context.Context, circuitID string, to domain.CircuitStatus, reason string) error {
	if r == nil || r.Circuits == nil {
		return errors.New("circuit repository is required")
	}
	d, err := r.load(ctx, circuitID)
	if err != nil {
		return err
	}
	if !d.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, d.Status, to)
	}
	if err := r.invalidate(ctx, circuitID); err != nil {
		return err
	}
	now := r.now()
	if err := r.Circuits.UpdateStatus(ctx, circuitID, d.Status, to, reason, now); err != nil {
		return err
	}
	// A reader may have refilled the cache between the first invalidation
	// and the write.
	if err := r.invalidate(ctx, circuitID); err != nil {
		return err
	}
	if err := r.Events.EmitTransition(ctx, *d, to, reason, now); err != nil {
		r.Log.WithError(err).WithField("circuit_id", circuitID).Error("emit transition event")
	}
	return nil
}

// Get returns the descriptor regardless of status.
func (r *CircuitRegistry) Get(ctx context.Context, circuitID string) (domain.CircuitDescriptor, error) {
	if r == nil || r.Circuits == nil {
		return domain.CircuitDescriptor{}, errors.New("circuit repository is required")
	}
	if r.Cache != nil {
		if d, ok, err := r.Cache.Get(ctx, circuitID); err == nil && ok {
			return *d, nil
		}
	}
	d, err := r.load(ctx, circuitID)
	if err != nil {
		return domain.CircuitDescriptor{}, err
	}
	if r.Cache != nil {
		if err := r.Cache.Put(ctx, *d, r.CacheTTL); err != nil {
			r.Log.WithError(err).WithField("circuit_id", circuitID).Warn("cache descriptor")
		}
	}
	return *d, nil
}

// GetForProving only returns Active circuits.
func (r *CircuitRegistry) GetForProving(ctx context.Context, circuitID string) (domain.CircuitDescriptor, error) {
	d, err := r.Get(ctx, circuitID)
	if err != nil {
		return domain.CircuitDescriptor{}, err
	}
	switch d.Status {
	case domain.CircuitActive:
		return d, nil
	case domain.CircuitRevoked:
		return domain.CircuitDescriptor{}, domain.ErrCircuitRevoked
	default:
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: status %s", domain.ErrCircuitInactive, d.Status)
	}
}

// GetForVerification accepts Active and Deprecated circuits.
func (r *CircuitRegistry) GetForVerification(ctx context.Context, circuitID string) (domain.CircuitDescriptor, error) {
	d, err := r.Get(ctx, circuitID)
	if err != nil {
		return domain.CircuitDescriptor{}, err
	}
	switch d.Status {
	case domain.CircuitActive, domain.CircuitDeprecated:
		return d, nil
	case domain.CircuitRevoked:
		return domain.CircuitDescriptor{}, domain.ErrCircuitRevoked
	default:
		return domain.CircuitDescriptor{}, fmt.Errorf("%w: status %s", domain.ErrCircuitInactive, d.Status)
	}
}

func (r *CircuitRegistry) List(ctx context.Context) ([]domain.CircuitDescriptor, error) {
	if r == nil || r.Circuits == nil {
		return nil, errors.New("circuit repository is required")
	}
	return r.Circuits.List(ctx)
}

func (r *CircuitRegistry) load(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, error) {
	if circuitID == "" {
		return nil, domain.ErrCircuitNotFound
	}
	d, err := r.Circuits.Get(ctx, circuitID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCircuitNotFound
		}
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrCircuitNotFound
	}
	return d, nil
}

func (r *CircuitRegistry) invalidate(ctx context.Context, circuitID string) error {
	if r.Cache == nil {
		return nil
	}
	if err := r.Cache.Invalidate(ctx, circuitID); err != nil {
		return fmt.Errorf("invalidate descriptor cache: %w", err)
	}
	return nil
}

func (r *CircuitRegistry) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}
