package main

import (
	"context"
	"fmt"

	"zkcred/internal/domain"
	"zkcred/internal/infra/cachemem"
	"zkcred/internal/infra/registrymem"
	"zkcred/internal/normalize"
	"zkcred/internal/usecase"
)

// localRegistry loads a descriptor file into an in-memory registry and marks
// it active, so the usecases run offline exactly as they do in the daemon.
func localRegistry(ctx context.Context, path string) (*usecase.CircuitRegistry, *normalize.Normalizer, domain.CircuitDescriptor, error) {
	var desc domain.CircuitDescriptor
	if err := readJSON(path, &desc); err != nil {
		return nil, nil, domain.CircuitDescriptor{}, err
	}
	schemas, err := normalize.New(normalize.IdentitySchema)
	if err != nil {
		return nil, nil, domain.CircuitDescriptor{}, err
	}
	registry := usecase.NewCircuitRegistry(
		registrymem.NewCircuits(),
		cachemem.New(),
		usecase.NewEventEmitter(nil, nil, log),
		schemas,
		0,
		log,
	)
	registered, err := registry.Register(ctx, desc)
	if err != nil {
		return nil, nil, domain.CircuitDescriptor{}, fmt.Errorf("descriptor %s: %w", path, err)
	}
	if desc.Status == domain.CircuitRevoked {
		return nil, nil, domain.CircuitDescriptor{}, fmt.Errorf("%w: %s", domain.ErrCircuitRevoked, desc.CircuitID)
	}
	if err := registry.Activate(ctx, registered.CircuitID, "local"); err != nil {
		return nil, nil, domain.CircuitDescriptor{}, err
	}
	active, err := registry.Get(ctx, registered.CircuitID)
	if err != nil {
		return nil, nil, domain.CircuitDescriptor{}, err
	}
	return registry, schemas, active, nil
}
