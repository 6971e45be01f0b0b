package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"zkcred/internal/commitment"
	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/prover"
	"zkcred/internal/witness"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
)

type ProveRequest struct {
	Credential domain.VerifiableCredential
	CircuitID  string
	Disclose   domain.DisclosurePolicy
	Context    domain.PublicContext
	// Commitment is the holder's existing commitment. A fresh one is drawn
	// when nil.
	Commitment *domain.Commitment
}

// ProofOutput is what the holder gets back: the submission for the verifier
// plus the commitment opening the holder has to keep.
type ProofOutput struct {
	Submission domain.ProofSubmission
	Commitment domain.Commitment
	Opening    domain.OpeningProof
	Backend    string
	Duration   time.Duration
}

// ProveCredential runs the holder side: normalize, commit, build the witness
// and prove on the shared pool.
type ProveCredential struct {
	Registry    *CircuitRegistry
	Normalizer  *normalize.Normalizer
	Commitments *commitment.Engine
	Witnesses   *witness.Generator
	Proofs      *prover.Generator
	Pool        *prover.Pool
	Guard       DisclosureGuard
	Issuers     IssuerVerifier
	Clock       Clock
	Log         logrus.FieldLogger
}

// ProofTask is an in-flight proof request.
type ProofTask struct {
	handle     *prover.Handle
	req        ProveRequest
	commitment domain.Commitment
	disclosed  []domain.DisclosedAttribute
}

// Submit validates the request and queues proving. Validation failures are
// returned synchronously; proving failures surface from Await.
func (u *ProveCredential) Submit(ctx context.Context, req ProveRequest) (*ProofTask, error) {
	if u == nil || u.Registry == nil || u.Normalizer == nil || u.Commitments == nil || u.Witnesses == nil || u.Proofs == nil || u.Pool == nil {
		return nil, errors.New("prove credential usecase is not configured")
	}
	desc, err := u.Registry.GetForProving(ctx, req.CircuitID)
	if err != nil {
		return nil, err
	}
	if req.Credential.ExpiredAt(u.now()) {
		return nil, domain.ErrCredentialExpired
	}
	if u.Issuers != nil {
		if err := u.Issuers.VerifyIssuer(ctx, req.Credential); err != nil {
			return nil, fmt.Errorf("%w: issuer signature: %v", domain.ErrInvalidCredential, err)
		}
	}
	v, err := u.Normalizer.Normalize(req.Credential, desc.Predicate.SchemaVersion)
	if err != nil {
		return nil, err
	}
	policy := req.Disclose.Normalized()
	slots, err := u.Witnesses.CheckPolicy(desc, v, policy)
	if err != nil {
		v.Wipe()
		return nil, err
	}
	if err := u.guard(ctx, desc, req.Context, policy); err != nil {
		v.Wipe()
		return nil, err
	}

	var com domain.Commitment
	if req.Commitment != nil {
		com = *req.Commitment
		if !commitment.Verify(com.Value, v, com.BlindingFactor) {
			v.Wipe()
			return nil, domain.ErrBindingMismatch
		}
	} else if com, err = u.Commitments.Commit(v); err != nil {
		v.Wipe()
		return nil, err
	}

	disclosed := make([]domain.DisclosedAttribute, 0, len(slots))
	for i, key := range policy {
		disclosed = append(disclosed, domain.DisclosedAttribute{Slot: slots[i], Key: key, Value: req.Credential.Attributes[key]})
	}

	job := func(jobCtx context.Context) (prover.Result, error) {
		defer v.Wipe()
		w, err := u.Witnesses.Build(desc, v, com.Value, com.BlindingFactor, policy, req.Context)
		if err != nil {
			return prover.Result{}, err
		}
		defer w.Zero()
		return u.Proofs.Prove(jobCtx, desc, w)
	}
	// The pool wipes v when the job is dropped, coalesced or refused.
	pairKey := strconv.Itoa(len(req.Credential.ID)) + ":" + req.Credential.ID + "|" + desc.CircuitID
	handle, err := u.Pool.Submit(ctx, pairKey, fingerprint(desc, v, com, policy, req.Context), job, prover.WithRelease(v.Wipe))
	if err != nil {
		return nil, err
	}
	return &ProofTask{handle: handle, req: req, commitment: com, disclosed: disclosed}, nil
}

// Prove submits and waits. Cancelling ctx withdraws the request.
func (u *ProveCredential) Prove(ctx context.Context, req ProveRequest) (ProofOutput, error) {
	task, err := u.Submit(ctx, req)
	if err != nil {
		return ProofOutput{}, err
	}
	out, err := task.Await(ctx)
	if err != nil {
		task.Cancel()
	}
	return out, err
}

func (u *ProveCredential) guard(ctx context.Context, desc domain.CircuitDescriptor, pc domain.PublicContext, policy domain.DisclosurePolicy) error {
	if u.Guard == nil {
		return nil
	}
	decision, err := u.Guard.Evaluate(ctx, DisclosureInput{
		CircuitID:  desc.CircuitID,
		Kind:       desc.Predicate.Kind,
		VerifierID: pc.VerifierID,
		Domain:     pc.Domain,
		Disclose:   []string(policy),
	})
	if err != nil {
		return fmt.Errorf("disclosure guard: %w", err)
	}
	if !decision.Allow {
		u.log().WithFields(logrus.Fields{
			"circuit_id":  desc.CircuitID,
			"verifier_id": pc.VerifierID,
			"deny":        decision.Deny,
		}).Info("disclosure denied by policy")
		return fmt.Errorf("%w: disclosure denied for verifier %s", domain.ErrPolicyViolation, pc.VerifierID)
	}
	return nil
}

func (u *ProveCredential) now() time.Time {
	if u.Clock != nil {
		return u.Clock().UTC()
	}
	return time.Now().UTC()
}

func (u *ProveCredential) log() logrus.FieldLogger {
	if u.Log != nil {
		return u.Log
	}
	return logrus.StandardLogger()
}

// Await waits for the proof. The returned commitment is the holder's secret
// opening and must not be forwarded to the verifier.
func (t *ProofTask) Await(ctx context.Context) (ProofOutput, error) {
	res, err := t.handle.Await(ctx)
	if err != nil {
		return ProofOutput{}, err
	}
	return ProofOutput{
		Submission: domain.ProofSubmission{
			CircuitID:     t.req.CircuitID,
			CredentialID:  t.req.Credential.ID,
			Proof:         res.Proof,
			PublicSignals: res.PublicSignals,
			Nullifier:     res.Nullifier.Value,
			Context:       t.req.Context,
			Disclosed:     t.disclosed,
		},
		Commitment: t.commitment,
		Opening:    res.Opening,
		Backend:    res.Backend,
		Duration:   res.Duration,
	}, nil
}

func (t *ProofTask) Cancel() {
	t.handle.Cancel()
}

func (t *ProofTask) Done() <-chan struct{} {
	return t.handle.Done()
}

// fingerprint identifies requests that would produce interchangeable proofs.
// A freshly drawn commitment makes every request distinct.
func fingerprint(desc domain.CircuitDescriptor, v domain.AttributeVector, com domain.Commitment, policy domain.DisclosurePolicy, pc domain.PublicContext) string {
	h := sha3.New256()
	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}
	write(desc.CircuitID)
	write(strconv.Itoa(desc.Version))
	write(desc.VerifyingKeyHash)
	write(v.CredentialTag.Hex())
	write(com.Value.Hex())
	for _, key := range policy {
		write(key)
	}
	write(pc.VerifierID)
	write(pc.Domain)
	write(pc.Nonce)
	write(strconv.FormatInt(pc.Reference, 10))
	return hex.EncodeToString(h.Sum(nil))
}
