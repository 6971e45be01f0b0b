package usecase

import (
	"context"
	"errors"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/nullifier"
	"zkcred/internal/verifier"

	"github.com/sirupsen/logrus"
)

// VerifyProof is the verifier side. An accepted proof has its nullifier
// reserved before the result is returned, so a concurrent duplicate
// submission sees NullifierAlreadyUsed.
type VerifyProof struct {
	Registry   *CircuitRegistry
	Verifier   *verifier.Verifier
	Nullifiers *nullifier.Manager
	Records    ProofRecordRepository
	Observer   VerificationObserver
	Clock      Clock
	Log        logrus.FieldLogger
}

// Execute verifies sub against expected. Failures are reported as reasons on
// the result; the error is only set when ctx ended before the nullifier was
// reserved.
func (u *VerifyProof) Execute(ctx context.Context, sub domain.ProofSubmission, expected domain.ExpectedContext) (domain.VerificationResult, error) {
	if u == nil || u.Registry == nil || u.Verifier == nil {
		return domain.VerificationResult{}, errors.New("verify proof usecase is not configured")
	}
	start := time.Now()
	desc, res := u.lookup(ctx, sub.CircuitID)
	if desc != nil {
		res = u.Verifier.Verify(ctx, sub, *desc, expected)
	}
	if err := ctx.Err(); err != nil {
		return domain.VerificationResult{}, err
	}
	if desc != nil && res.Verified {
		res = u.reserve(ctx, sub, *desc, expected, res)
		// A reserved nullifier is consumed; the caller gets its receipt and the
		// record is kept even if ctx ends now.
		ctx = context.WithoutCancel(ctx)
	}

	outcome := "accepted"
	if !res.Verified {
		outcome = "rejected"
	}
	if u.Observer != nil {
		u.Observer.ObserveVerification(outcome, res.Reasons, time.Since(start))
	}
	u.log().WithFields(logrus.Fields{
		"circuit_id":  sub.CircuitID,
		"verifier_id": expected.VerifierID,
		"outcome":     outcome,
		"reasons":     res.Reasons,
	}).Info("proof verification")
	u.record(ctx, sub, desc, expected, res)
	return res, nil
}

func (u *VerifyProof) lookup(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, domain.VerificationResult) {
	desc, err := u.Registry.GetForVerification(ctx, circuitID)
	switch {
	case err == nil:
		return &desc, domain.VerificationResult{}
	case errors.Is(err, domain.ErrCircuitNotFound):
		return nil, domain.Rejected(domain.ReasonCircuitNotFound)
	case errors.Is(err, domain.ErrCircuitRevoked):
		return nil, domain.Rejected(domain.ReasonCircuitRevoked)
	case errors.Is(err, domain.ErrCircuitInactive):
		return nil, domain.Rejected(domain.ReasonCircuitInactive)
	default:
		u.log().WithError(err).WithField("circuit_id", circuitID).Error("circuit lookup failed")
		return nil, domain.Rejected(domain.ReasonCircuitNotFound)
	}
}

func (u *VerifyProof) reserve(ctx context.Context, sub domain.ProofSubmission, desc domain.CircuitDescriptor, expected domain.ExpectedContext, res domain.VerificationResult) domain.VerificationResult {
	if u.Nullifiers == nil {
		return domain.Rejected(domain.ReasonLedgerUnavailable)
	}
	n := domain.Nullifier{
		Value:     sub.Nullifier,
		CircuitID: desc.CircuitID,
		ContextID: u.Nullifiers.ScopeContext(desc.CircuitID, expected.ContextID()),
	}
	receipt, err := u.Nullifiers.CheckAndReserve(ctx, n)
	switch {
	case errors.Is(err, domain.ErrAlreadyUsed):
		return domain.Rejected(domain.ReasonNullifierAlreadyUsed)
	case err != nil:
		u.log().WithError(err).WithField("circuit_id", desc.CircuitID).Error("nullifier reservation failed")
		return domain.Rejected(domain.ReasonLedgerUnavailable)
	}
	res.Receipt = &receipt
	return res
}

func (u *VerifyProof) record(ctx context.Context, sub domain.ProofSubmission, desc *domain.CircuitDescriptor, expected domain.ExpectedContext, res domain.VerificationResult) {
	if u.Records == nil {
		return
	}
	now := u.now()
	rec := domain.ProofRecord{
		CircuitID:   sub.CircuitID,
		Nullifier:   sub.Nullifier,
		ContextID:   expected.ContextID(),
		Verified:    res.Verified,
		Reasons:     res.Reasons,
		SubmittedAt: now,
	}
	if desc != nil {
		rec.VerifyingKeyHash = desc.VerifyingKeyHash
	}
	if res.Verified {
		rec.VerifiedAt = &now
	}
	if _, err := u.Records.Save(ctx, rec); err != nil {
		u.log().WithError(err).WithField("circuit_id", sub.CircuitID).Warn("save proof record")
	}
}

func (u *VerifyProof) now() time.Time {
	if u.Clock != nil {
		return u.Clock().UTC()
	}
	return time.Now().UTC()
}

func (u *VerifyProof) log() logrus.FieldLogger {
	if u.Log != nil {
		return u.Log
	}
	return logrus.StandardLogger()
}
