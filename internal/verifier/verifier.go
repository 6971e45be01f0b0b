package verifier

import (
	"context"
	"errors"
	"sync"

	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/zk"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/sirupsen/logrus"
)

// Nullifiers is the slice of the nullifier manager the verifier reads from.
type Nullifiers interface {
	ScopeContext(circuitID, contextID string) string
	Derive(credentialID, circuitID, contextID string) domain.Nullifier
	IsConsumed(ctx context.Context, value domain.FieldElement) (bool, error)
}

// Verifier checks submissions against a registered descriptor. It never
// writes to the ledger; reserving the nullifier of an accepted proof is left
// to the caller.
type Verifier struct {
	Normalizer *normalize.Normalizer
	Nullifiers Nullifiers
	Status     domain.CredentialStatusRegistry
	Log        logrus.FieldLogger

	mu   sync.RWMutex
	keys map[string]groth16.VerifyingKey
}

func New(n *normalize.Normalizer, nullifiers Nullifiers, status domain.CredentialStatusRegistry, log logrus.FieldLogger) *Verifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{
		Normalizer: n,
		Nullifiers: nullifiers,
		Status:     status,
		Log:        log,
		keys:       make(map[string]groth16.VerifyingKey),
	}
}

// Verify runs every check and reports all failure categories it found.
// Malformed signals stop evaluation early since nothing else can be read.
func (v *Verifier) Verify(ctx context.Context, sub domain.ProofSubmission, desc domain.CircuitDescriptor, expected domain.ExpectedContext) domain.VerificationResult {
	var reasons reasonSet

	signals, err := zk.DecodeSignals(sub.PublicSignals)
	if err != nil {
		return domain.Rejected(domain.ReasonMalformedSignals)
	}

	if err := v.verifyProof(desc, sub.Proof, signals); err != nil {
		v.Log.WithField("circuit_id", desc.CircuitID).WithError(err).Debug("proof rejected")
		reasons.add(domain.ReasonInvalidProof)
	}
	if !v.contextMatches(sub, desc, expected, signals) {
		reasons.add(domain.ReasonContextMismatch)
	}
	disclosed, ok := v.disclosureMatches(sub, desc, expected, signals)
	if !ok {
		reasons.add(domain.ReasonDisclosureMismatch)
	}
	v.checkNullifier(ctx, sub, desc, expected, signals, &reasons)
	v.checkStatus(ctx, sub.CredentialID, &reasons)

	if len(reasons) > 0 {
		return domain.Rejected(reasons...)
	}
	return domain.VerificationResult{
		Verified:  true,
		Reasons:   []domain.Reason{},
		Disclosed: disclosed,
	}
}

func (v *Verifier) verifyProof(desc domain.CircuitDescriptor, proof []byte, signals []fr.Element) error {
	vk, err := v.verifyingKey(desc.VerifyingKey)
	if err != nil {
		return err
	}
	return zk.Verify(vk, proof, signals)
}

func (v *Verifier) verifyingKey(raw []byte) (groth16.VerifyingKey, error) {
	if len(raw) == 0 {
		return nil, errors.New("descriptor carries no verifying key")
	}
	hash := zk.HashVerifyingKey(raw)
	v.mu.RLock()
	vk, ok := v.keys[hash]
	v.mu.RUnlock()
	if ok {
		return vk, nil
	}
	vk, err := zk.DecodeVerifyingKey(raw)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	if v.keys == nil {
		v.keys = make(map[string]groth16.VerifyingKey)
	}
	v.keys[hash] = vk
	v.mu.Unlock()
	return vk, nil
}

func (v *Verifier) contextMatches(sub domain.ProofSubmission, desc domain.CircuitDescriptor, expected domain.ExpectedContext, signals []fr.Element) bool {
	if sub.CircuitID != desc.CircuitID || sub.Context != expected.PublicContext {
		return false
	}
	scoped := expected.ContextID()
	if v.Nullifiers != nil {
		scoped = v.Nullifiers.ScopeContext(desc.CircuitID, scoped)
	}
	want := map[int]fr.Element{
		zk.SignalCircuit:   zk.CircuitTag(desc.CircuitID),
		zk.SignalContext:   zk.ContextTag(scoped),
		zk.SignalChallenge: zk.Challenge(expected.PublicContext),
		zk.SignalThreshold: zk.FromInt64(desc.Predicate.Threshold),
		zk.SignalReference: zk.FromInt64(expected.Reference),
	}
	for idx, e := range want {
		if !signals[idx].Equal(&e) {
			return false
		}
	}
	return true
}

// disclosureMatches checks that disclosed plaintext re-encodes to the
// disclosed signals and covers every masked slot.
func (v *Verifier) disclosureMatches(sub domain.ProofSubmission, desc domain.CircuitDescriptor, expected domain.ExpectedContext, signals []fr.Element) (map[string]any, bool) {
	if v.Normalizer == nil {
		return nil, false
	}
	out := make(map[string]any, len(sub.Disclosed))
	covered := make(map[int]struct{}, len(sub.Disclosed))
	ok := true
	for _, attr := range sub.Disclosed {
		if attr.Slot < 0 || attr.Slot >= zk.Width || attr.Key == "" {
			ok = false
			continue
		}
		if _, dup := covered[attr.Slot]; dup || desc.Predicate.IsPrivate(attr.Key) {
			ok = false
			continue
		}
		if !signals[zk.SignalMask+attr.Slot].IsOne() {
			ok = false
			continue
		}
		encoded, err := v.Normalizer.EncodeDisclosed(desc.Predicate.SchemaVersion, attr.Slot, attr.Key, attr.Value)
		if err != nil || !encoded.Equal(&signals[zk.SignalDisclosed+attr.Slot]) {
			ok = false
			continue
		}
		covered[attr.Slot] = struct{}{}
		out[attr.Key] = attr.Value
	}
	for i := 0; i < zk.Width; i++ {
		mask := signals[zk.SignalMask+i]
		if mask.IsZero() {
			continue
		}
		if _, seen := covered[i]; !seen {
			ok = false
		}
	}
	for _, key := range expected.RequiredDisclosures {
		if _, seen := out[key]; !seen {
			ok = false
		}
	}
	return out, ok
}

func (v *Verifier) checkNullifier(ctx context.Context, sub domain.ProofSubmission, desc domain.CircuitDescriptor, expected domain.ExpectedContext, signals []fr.Element, reasons *reasonSet) {
	inProof := zk.ToDomain(signals[zk.SignalNullifier])
	if sub.Nullifier != inProof || sub.CredentialID == "" || v.Nullifiers == nil {
		reasons.add(domain.ReasonNullifierMismatch)
		return
	}
	derived := v.Nullifiers.Derive(sub.CredentialID, desc.CircuitID, expected.ContextID())
	if derived.Value != sub.Nullifier {
		reasons.add(domain.ReasonNullifierMismatch)
		return
	}
	used, err := v.Nullifiers.IsConsumed(ctx, sub.Nullifier)
	switch {
	case err != nil:
		v.Log.WithField("circuit_id", desc.CircuitID).WithError(err).Warn("nullifier ledger lookup failed")
		reasons.add(domain.ReasonLedgerUnavailable)
	case used:
		reasons.add(domain.ReasonNullifierAlreadyUsed)
	}
}

func (v *Verifier) checkStatus(ctx context.Context, credentialID string, reasons *reasonSet) {
	if v.Status == nil {
		return
	}
	if credentialID == "" {
		reasons.add(domain.ReasonCredentialStatusUnknown)
		return
	}
	status, err := v.Status.Status(ctx, credentialID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Credentials the issuer never reported on are treated as active.
	case err != nil:
		v.Log.WithError(err).Warn("credential status lookup failed")
		reasons.add(domain.ReasonCredentialStatusUnknown)
	case status == domain.CredentialRevoked:
		reasons.add(domain.ReasonCredentialRevoked)
	case status == domain.CredentialExpired:
		reasons.add(domain.ReasonCredentialExpired)
	}
}

type reasonSet []domain.Reason

func (s *reasonSet) add(r domain.Reason) {
	for _, got := range *s {
		if got == r {
			return
		}
	}
	*s = append(*s, r)
}
