package nullifier

import (
	"context"
	"errors"
	"fmt"

	"zkcred/internal/domain"
	"zkcred/internal/zk"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/sirupsen/logrus"
)

// Manager derives nullifiers and reserves them on the ledger.
//
// The value is MiMC(H(credentialId), H(circuitId), H(contextId)). Including
// the context keeps presentations to different verifiers unlinkable while
// repeated use in one (verifier, domain, circuit) collides.
type Manager struct {
	ledger        domain.NullifierLedger
	auditLinkable bool
	log           logrus.FieldLogger
}

type Option func(*Manager)

// WithAuditLinkability scopes nullifiers per circuit instead of per context,
// so one credential yields the same nullifier for every verifier of a circuit.
// This trades unlinkability for auditability and must be chosen explicitly.
func WithAuditLinkability() Option {
	return func(m *Manager) { m.auditLinkable = true }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(ledger domain.NullifierLedger, opts ...Option) *Manager {
	m := &Manager{ledger: ledger, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) AuditLinkable() bool {
	return m != nil && m.auditLinkable
}

// ScopeContext maps a verifier context id to the id the nullifier is scoped to.
func (m *Manager) ScopeContext(circuitID, contextID string) string {
	if m.AuditLinkable() {
		return "audit|" + circuitID
	}
	return contextID
}

func (m *Manager) Derive(credentialID, circuitID, contextID string) domain.Nullifier {
	scoped := m.ScopeContext(circuitID, contextID)
	value := Value(zk.CredentialTag(credentialID), zk.CircuitTag(circuitID), zk.ContextTag(scoped))
	return domain.Nullifier{
		Value:     zk.ToDomain(value),
		CircuitID: circuitID,
		ContextID: scoped,
	}
}

// Value is the nullifier function shared with the predicate circuit.
func Value(credentialTag, circuitTag, contextTag fr.Element) fr.Element {
	return zk.MiMC(credentialTag, circuitTag, contextTag)
}

// CheckAndReserve consumes n on the ledger. ErrAlreadyUsed is an expected outcome.
func (m *Manager) CheckAndReserve(ctx context.Context, n domain.Nullifier) (domain.LedgerReceipt, error) {
	if m == nil || m.ledger == nil {
		return domain.LedgerReceipt{}, errors.New("nullifier ledger is required")
	}
	if n.Value.IsZero() || n.CircuitID == "" {
		return domain.LedgerReceipt{}, fmt.Errorf("%w: incomplete nullifier", domain.ErrSchemaMismatch)
	}
	receipt, err := m.ledger.CheckAndReserve(ctx, n)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyUsed) {
			m.log.WithField("circuit_id", n.CircuitID).Info("nullifier already consumed")
			return domain.LedgerReceipt{}, domain.ErrAlreadyUsed
		}
		return domain.LedgerReceipt{}, fmt.Errorf("reserve nullifier: %w", err)
	}
	return receipt, nil
}

func (m *Manager) IsConsumed(ctx context.Context, value domain.FieldElement) (bool, error) {
	if m == nil || m.ledger == nil {
		return false, errors.New("nullifier ledger is required")
	}
	return m.ledger.IsConsumed(ctx, value)
}

// Sweep removes every nullifier recorded for circuitID. It is only invoked as
// part of an explicit revocation sweep.
func (m *Manager) Sweep(ctx context.Context, circuitID string) (int64, error) {
	if m == nil || m.ledger == nil {
		return 0, errors.New("nullifier ledger is required")
	}
	if circuitID == "" {
		return 0, errors.New("circuit id is required")
	}
	removed, err := m.ledger.Sweep(ctx, circuitID)
	if err != nil {
		return 0, err
	}
	m.log.WithFields(logrus.Fields{"circuit_id": circuitID, "removed": removed}).Warn("nullifier sweep")
	return removed, nil
}
