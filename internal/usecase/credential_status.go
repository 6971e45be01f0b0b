package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zkcred/internal/domain"
)

// CredentialStatusService is the issuer-facing side of the status registry.
type CredentialStatusService struct {
	Store CredentialStatusStore
	Clock Clock
}

func (s *CredentialStatusService) Set(ctx context.Context, credentialID string, status domain.CredentialStatus) error {
	if s == nil || s.Store == nil {
		return errors.New("credential status store is required")
	}
	if credentialID == "" {
		return fmt.Errorf("%w: credential id", domain.ErrMissingField)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown credential status %q", domain.ErrInvalidCredential, status)
	}
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock().UTC()
	}
	return s.Store.SetStatus(ctx, credentialID, status, now)
}

// Get returns the recorded status; credentials without a record are Active.
func (s *CredentialStatusService) Get(ctx context.Context, credentialID string) (domain.CredentialStatus, error) {
	if s == nil || s.Store == nil {
		return "", errors.New("credential status store is required")
	}
	status, err := s.Store.Status(ctx, credentialID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CredentialActive, nil
	}
	return status, err
}
