package usecase

import (
	"context"
	"time"

	"zkcred/internal/domain"
)

type Clock func() time.Time

// CircuitRepository stores descriptors. Create assigns the registration
// height and fails with ErrDuplicateCircuit for a known id.
type CircuitRepository interface {
	Create(ctx context.Context, d domain.CircuitDescriptor) (domain.CircuitDescriptor, error)
	Get(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, error)
	UpdateStatus(ctx context.Context, circuitID string, from, to domain.CircuitStatus, reason string, at time.Time) error
	List(ctx context.Context) ([]domain.CircuitDescriptor, error)
}

type DescriptorCache interface {
	Get(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, bool, error)
	Put(ctx context.Context, d domain.CircuitDescriptor, ttl time.Duration) error
	Invalidate(ctx context.Context, circuitID string) error
}

type CircuitEventRepository interface {
	Append(ctx context.Context, event domain.CircuitEvent) (domain.CircuitEvent, error)
	ListByCircuit(ctx context.Context, circuitID string) ([]domain.CircuitEvent, error)
}

type ProofRecordRepository interface {
	Save(ctx context.Context, rec domain.ProofRecord) (domain.ProofRecord, error)
	ListByCircuit(ctx context.Context, circuitID string, limit int) ([]domain.ProofRecord, error)
}

// CredentialStatusStore is the writable side of the credential status registry.
type CredentialStatusStore interface {
	domain.CredentialStatusRegistry
	SetStatus(ctx context.Context, credentialID string, status domain.CredentialStatus, at time.Time) error
}

// IssuerVerifier checks the issuer's signature over a credential before any
// of its attributes are committed to.
type IssuerVerifier interface {
	VerifyIssuer(ctx context.Context, cred domain.VerifiableCredential) error
}

// DisclosureGuard is consulted before proving to decide whether a verifier
// may receive the requested attributes.
type DisclosureGuard interface {
	Evaluate(ctx context.Context, input DisclosureInput) (DisclosureDecision, error)
}

type DisclosureInput struct {
	CircuitID  string             `json:"circuit_id"`
	Kind       domain.CircuitKind `json:"kind"`
	VerifierID string             `json:"verifier_id"`
	Domain     string             `json:"domain"`
	Disclose   []string           `json:"disclose"`
}

type DisclosureDecision struct {
	Allow bool     `json:"allow"`
	Deny  []string `json:"deny,omitempty"`
}

// VerificationObserver receives verification telemetry.
type VerificationObserver interface {
	ObserveVerification(outcome string, reasons []domain.Reason, d time.Duration)
}
