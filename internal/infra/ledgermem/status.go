package ledgermem

import (
	"context"
	"sync"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/usecase"
)

// StatusRegistry keeps issuer-reported credential statuses in memory.
type StatusRegistry struct {
	mu      sync.RWMutex
	entries map[string]statusEntry
}

type statusEntry struct {
	status    domain.CredentialStatus
	updatedAt time.Time
}

func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{entries: make(map[string]statusEntry)}
}

func (r *StatusRegistry) Status(ctx context.Context, credentialID string) (domain.CredentialStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[credentialID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return entry.status, nil
}

func (r *StatusRegistry) SetStatus(ctx context.Context, credentialID string, status domain.CredentialStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[credentialID] = statusEntry{status: status, updatedAt: at}
	return nil
}

var _ usecase.CredentialStatusStore = (*StatusRegistry)(nil)
