package usecase_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"zkcred/internal/commitment"
	"zkcred/internal/domain"
	"zkcred/internal/infra/cachemem"
	"zkcred/internal/infra/ledgermem"
	"zkcred/internal/infra/registrymem"
	"zkcred/internal/normalize"
	"zkcred/internal/nullifier"
	"zkcred/internal/prover"
	"zkcred/internal/usecase"
	"zkcred/internal/verifier"
	"zkcred/internal/witness"
	"zkcred/internal/zk"
	"zkcred/internal/zk/zktest"

	"github.com/sirupsen/logrus"
)

type harness struct {
	registry    *usecase.CircuitRegistry
	prove       *usecase.ProveCredential
	verify      *usecase.VerifyProof
	sweep       *usecase.RevocationSweep
	statuses    *usecase.CredentialStatusService
	ledger      *ledgermem.Ledger
	events      *registrymem.Events
	records     *registrymem.ProofRecords
	params      *prover.MemoryParams
	schemas     *normalize.Normalizer
	commitments *commitment.Engine
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	nullOpts []nullifier.Option
	guard    usecase.DisclosureGuard
	clock    usecase.Clock
}

func withAudit() harnessOption {
	return func(c *harnessConfig) { c.nullOpts = append(c.nullOpts, nullifier.WithAuditLinkability()) }
}

func withGuard(g usecase.DisclosureGuard) harnessOption {
	return func(c *harnessConfig) { c.guard = g }
}

func withClock(clock usecase.Clock) harnessOption {
	return func(c *harnessConfig) { c.clock = clock }
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var cfg harnessConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	log := quietLogger()
	schemas := zktest.Normalizer(t)
	ledger := ledgermem.New()
	nullifiers := nullifier.NewManager(ledger, append(cfg.nullOpts, nullifier.WithLogger(log))...)
	status := ledgermem.NewStatusRegistry()
	events := registrymem.NewEvents()
	records := registrymem.NewProofRecords()
	registry := usecase.NewCircuitRegistry(
		registrymem.NewCircuits(),
		cachemem.New(),
		usecase.NewEventEmitter(events, nil, log),
		schemas,
		time.Minute,
		log,
	)
	params := prover.NewMemoryParams()
	commitments := commitment.NewEngine(nil)
	pool := prover.NewPool(2, 8, nil, log)
	t.Cleanup(pool.Close)

	return &harness{
		registry: registry,
		prove: &usecase.ProveCredential{
			Registry:    registry,
			Normalizer:  schemas,
			Commitments: commitments,
			Witnesses:   witness.NewGenerator(schemas, commitments, nullifiers),
			Proofs:      prover.NewGenerator(params, prover.Software{}, nil, log),
			Pool:        pool,
			Guard:       cfg.guard,
			Clock:       cfg.clock,
			Log:         log,
		},
		verify: &usecase.VerifyProof{
			Registry:   registry,
			Verifier:   verifier.New(schemas, nullifiers, status, log),
			Nullifiers: nullifiers,
			Records:    records,
			Log:        log,
		},
		sweep:       &usecase.RevocationSweep{Registry: registry, Nullifiers: nullifiers},
		statuses:    &usecase.CredentialStatusService{Store: status},
		ledger:      ledger,
		events:      events,
		records:     records,
		params:      params,
		schemas:     schemas,
		commitments: commitments,
	}
}

// activeAge registers and activates an ageAtLeast circuit.
func (h *harness) activeAge(t *testing.T, circuitID string, threshold int64) domain.CircuitDescriptor {
	t.Helper()
	desc, params := zktest.AgeAtLeast(t, circuitID, threshold)
	return h.activate(t, desc, params)
}

func (h *harness) activate(t *testing.T, desc domain.CircuitDescriptor, params *zk.Params) domain.CircuitDescriptor {
	t.Helper()
	ctx := context.Background()
	h.params.Put(desc.ProvingParamsRef, params)
	if _, err := h.registry.Register(ctx, desc); err != nil {
		t.Fatalf("register %s: %v", desc.CircuitID, err)
	}
	if err := h.registry.Activate(ctx, desc.CircuitID, "test"); err != nil {
		t.Fatalf("activate %s: %v", desc.CircuitID, err)
	}
	got, err := h.registry.Get(ctx, desc.CircuitID)
	if err != nil {
		t.Fatalf("get %s: %v", desc.CircuitID, err)
	}
	return got
}

func (h *harness) mustProve(t *testing.T, req usecase.ProveRequest) usecase.ProofOutput {
	t.Helper()
	out, err := h.prove.Prove(context.Background(), req)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	return out
}

func (h *harness) mustVerify(t *testing.T, sub domain.ProofSubmission, expected domain.ExpectedContext) domain.VerificationResult {
	t.Helper()
	res, err := h.verify.Execute(context.Background(), sub, expected)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res
}

func expect(pc domain.PublicContext) domain.ExpectedContext {
	return domain.ExpectedContext{PublicContext: pc}
}

func ageRequest(circuitID string, pc domain.PublicContext) usecase.ProveRequest {
	return usecase.ProveRequest{
		Credential: zktest.Credential("cred-1", 2000),
		CircuitID:  circuitID,
		Context:    pc,
	}
}

func TestProveVerify_AgeAtLeast18(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")

	out := h.mustProve(t, ageRequest("age-18", pc))
	if len(out.Submission.Proof) != zk.ProofSize {
		t.Fatalf("expected %d byte proof, got %d", zk.ProofSize, len(out.Submission.Proof))
	}
	if len(out.Submission.PublicSignals) != zk.NbPublicSignals {
		t.Fatalf("expected %d public signals, got %d", zk.NbPublicSignals, len(out.Submission.PublicSignals))
	}
	if out.Submission.PublicSignals[zk.SignalCommitment] != out.Commitment.Value {
		t.Fatalf("expected commitment to be the first public signal")
	}

	res := h.mustVerify(t, out.Submission, expect(pc))
	if !res.Verified {
		t.Fatalf("expected proof to verify, got reasons %v", res.Reasons)
	}
	if res.Receipt == nil || res.Receipt.Nullifier != out.Submission.Nullifier {
		t.Fatalf("expected a ledger receipt for the nullifier")
	}
	if consumed, _ := h.ledger.IsConsumed(context.Background(), out.Submission.Nullifier); !consumed {
		t.Fatalf("expected nullifier to be consumed")
	}
}

func TestProve_AgeAtLeast30FailsAtProving(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-30", 30)

	_, err := h.prove.Prove(context.Background(), ageRequest("age-30", zktest.Context("verifier-a")))
	if !errors.Is(err, domain.ErrProvingFailed) {
		t.Fatalf("expected ErrProvingFailed, got %v", err)
	}
}

func TestVerify_TamperedSubmission(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")
	out := h.mustProve(t, ageRequest("age-18", pc))

	flipped := out.Submission
	flipped.Proof = append([]byte(nil), out.Submission.Proof...)
	flipped.Proof[10] ^= 0x01
	if res := h.mustVerify(t, flipped, expect(pc)); res.Verified || !res.Has(domain.ReasonInvalidProof) {
		t.Fatalf("expected InvalidProof for a flipped proof byte, got %+v", res)
	}

	other := h.mustProve(t, usecase.ProveRequest{
		Credential: zktest.Credential("cred-1", 1990),
		CircuitID:  "age-18",
		Context:    zktest.Context("verifier-z"),
	})
	swapped := out.Submission
	swapped.PublicSignals = append([]domain.FieldElement(nil), out.Submission.PublicSignals...)
	swapped.PublicSignals[zk.SignalCommitment] = other.Commitment.Value
	if res := h.mustVerify(t, swapped, expect(pc)); res.Verified || !res.Has(domain.ReasonInvalidProof) {
		t.Fatalf("expected InvalidProof for a swapped commitment, got %+v", res)
	}

	short := out.Submission
	short.PublicSignals = out.Submission.PublicSignals[:3]
	if res := h.mustVerify(t, short, expect(pc)); res.Verified || !res.Has(domain.ReasonMalformedSignals) {
		t.Fatalf("expected MalformedSignals, got %+v", res)
	}

	// None of the rejected attempts reserved the nullifier.
	if res := h.mustVerify(t, out.Submission, expect(pc)); !res.Verified {
		t.Fatalf("expected untampered submission to verify, got %v", res.Reasons)
	}
}

func TestProve_BindingMismatch(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)

	v, err := h.schemas.Normalize(zktest.Credential("cred-2", 1985), normalize.IdentityV1)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	foreign, err := h.commitments.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	req := ageRequest("age-18", zktest.Context("verifier-a"))
	req.Commitment = &foreign
	if _, err := h.prove.Prove(context.Background(), req); !errors.Is(err, domain.ErrBindingMismatch) {
		t.Fatalf("expected ErrBindingMismatch, got %v", err)
	}
}

func TestProve_ReusesHolderCommitment(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)

	v, err := h.schemas.Normalize(zktest.Credential("cred-1", 2000), normalize.IdentityV1)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	held, err := h.commitments.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	req := ageRequest("age-18", zktest.Context("verifier-a"))
	req.Commitment = &held
	out := h.mustProve(t, req)
	if out.Commitment != held {
		t.Fatalf("expected the supplied commitment to be used")
	}
	if out.Submission.PublicSignals[zk.SignalCommitment] != held.Value {
		t.Fatalf("expected proof to be bound to the supplied commitment")
	}
	if res := h.mustVerify(t, out.Submission, expect(zktest.Context("verifier-a"))); !res.Verified {
		t.Fatalf("expected proof to verify, got %v", res.Reasons)
	}
}

func TestVerify_DoubleUse(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")

	first := h.mustProve(t, ageRequest("age-18", pc))
	if res := h.mustVerify(t, first.Submission, expect(pc)); !res.Verified {
		t.Fatalf("expected first use to verify, got %v", res.Reasons)
	}
	if res := h.mustVerify(t, first.Submission, expect(pc)); res.Verified || !res.Has(domain.ReasonNullifierAlreadyUsed) {
		t.Fatalf("expected replay to be rejected, got %+v", res)
	}

	// A fresh proof with a new nonce still carries the same nullifier.
	again := pc
	again.Nonce = "nonce-2"
	second := h.mustProve(t, ageRequest("age-18", again))
	if second.Submission.Nullifier != first.Submission.Nullifier {
		t.Fatalf("expected the same nullifier within one verifier context")
	}
	if res := h.mustVerify(t, second.Submission, expect(again)); res.Verified || !res.Has(domain.ReasonNullifierAlreadyUsed) {
		t.Fatalf("expected second presentation to be rejected, got %+v", res)
	}

	records, err := h.records.ListByCircuit(context.Background(), "age-18", 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

// cancelAfterReserve ends the caller's context right after a reservation lands.
type cancelAfterReserve struct {
	domain.NullifierLedger
	cancel context.CancelFunc
}

func (l cancelAfterReserve) CheckAndReserve(ctx context.Context, n domain.Nullifier) (domain.LedgerReceipt, error) {
	receipt, err := l.NullifierLedger.CheckAndReserve(ctx, n)
	l.cancel()
	return receipt, err
}

func TestVerify_CancelledAfterReserveKeepsReceipt(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")
	out := h.mustProve(t, ageRequest("age-18", pc))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uc := *h.verify
	uc.Nullifiers = nullifier.NewManager(cancelAfterReserve{NullifierLedger: h.ledger, cancel: cancel}, nullifier.WithLogger(quietLogger()))

	res, err := uc.Execute(ctx, out.Submission, expect(pc))
	if err != nil {
		t.Fatalf("expected reserved proof to be reported, got %v", err)
	}
	if !res.Verified || res.Receipt == nil {
		t.Fatalf("expected verified result with receipt, got %+v", res)
	}
	records, err := h.records.ListByCircuit(context.Background(), "age-18", 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || !records[0].Verified {
		t.Fatalf("expected one verified record, got %+v", records)
	}
}

func TestVerify_CancelledBeforeReserve(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")
	out := h.mustProve(t, ageRequest("age-18", pc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.verify.Execute(ctx, out.Submission, expect(pc)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	consumed, err := h.ledger.IsConsumed(context.Background(), out.Submission.Nullifier)
	if err != nil {
		t.Fatalf("is consumed: %v", err)
	}
	if consumed {
		t.Fatalf("expected cancelled verification to leave the nullifier unconsumed")
	}
	if res := h.mustVerify(t, out.Submission, expect(pc)); !res.Verified {
		t.Fatalf("expected retry to verify, got %v", res.Reasons)
	}
}

func TestVerify_UnlinkableAcrossVerifiers(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)

	a := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-a")))
	b := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-b")))
	if a.Submission.Nullifier == b.Submission.Nullifier {
		t.Fatalf("expected verifiers to see different nullifiers")
	}
	if a.Submission.PublicSignals[zk.SignalCommitment] == b.Submission.PublicSignals[zk.SignalCommitment] {
		t.Fatalf("expected fresh commitments per presentation")
	}
	if res := h.mustVerify(t, a.Submission, expect(zktest.Context("verifier-a"))); !res.Verified {
		t.Fatalf("expected verifier-a to accept, got %v", res.Reasons)
	}
	if res := h.mustVerify(t, b.Submission, expect(zktest.Context("verifier-b"))); !res.Verified {
		t.Fatalf("expected verifier-b to accept, got %v", res.Reasons)
	}
}

func TestVerify_SeparatorInVerifierContext(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)

	ctxA := zktest.Context("shop|eu")
	ctxB := zktest.Context("shop")
	ctxB.Domain = "eu|" + ctxA.Domain

	a := h.mustProve(t, ageRequest("age-18", ctxA))
	b := h.mustProve(t, ageRequest("age-18", ctxB))
	if a.Submission.Nullifier == b.Submission.Nullifier {
		t.Fatalf("expected distinct verifier contexts to see different nullifiers")
	}
	if res := h.mustVerify(t, a.Submission, expect(ctxA)); !res.Verified {
		t.Fatalf("expected first verifier to accept, got %v", res.Reasons)
	}
	if res := h.mustVerify(t, b.Submission, expect(ctxB)); !res.Verified {
		t.Fatalf("expected second verifier to accept, got %v", res.Reasons)
	}
}

func TestVerify_AuditLinkableNullifiers(t *testing.T) {
	h := newHarness(t, withAudit())
	h.activeAge(t, "age-18", 18)

	a := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-a")))
	b := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-b")))
	if a.Submission.Nullifier != b.Submission.Nullifier {
		t.Fatalf("expected audit mode to link nullifiers across verifiers")
	}
	if res := h.mustVerify(t, a.Submission, expect(zktest.Context("verifier-a"))); !res.Verified {
		t.Fatalf("expected first presentation to verify, got %v", res.Reasons)
	}
	if res := h.mustVerify(t, b.Submission, expect(zktest.Context("verifier-b"))); !res.Has(domain.ReasonNullifierAlreadyUsed) {
		t.Fatalf("expected second verifier to see a consumed nullifier, got %+v", res)
	}
}

func TestVerify_ContextMismatch(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	out := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-a")))

	res := h.mustVerify(t, out.Submission, expect(zktest.Context("verifier-b")))
	if res.Verified || !res.Has(domain.ReasonContextMismatch) {
		t.Fatalf("expected ContextMismatch, got %+v", res)
	}

	stale := zktest.Context("verifier-a")
	stale.Nonce = "nonce-9"
	res = h.mustVerify(t, out.Submission, expect(stale))
	if res.Verified || !res.Has(domain.ReasonContextMismatch) {
		t.Fatalf("expected a different nonce to mismatch, got %+v", res)
	}

	later := zktest.Context("verifier-a")
	later.Reference = 2030
	res = h.mustVerify(t, out.Submission, expect(later))
	if res.Verified || !res.Has(domain.ReasonContextMismatch) {
		t.Fatalf("expected a different reference year to mismatch, got %+v", res)
	}
}

func TestVerify_NullifierMismatch(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")
	out := h.mustProve(t, ageRequest("age-18", pc))

	lying := out.Submission
	lying.CredentialID = "cred-other"
	if res := h.mustVerify(t, lying, expect(pc)); res.Verified || !res.Has(domain.ReasonNullifierMismatch) {
		t.Fatalf("expected NullifierMismatch for a different credential id, got %+v", res)
	}
}

func TestVerify_CredentialRevoked(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")
	out := h.mustProve(t, ageRequest("age-18", pc))

	ctx := context.Background()
	if err := h.statuses.Set(ctx, "cred-1", domain.CredentialRevoked); err != nil {
		t.Fatalf("set status: %v", err)
	}
	res := h.mustVerify(t, out.Submission, expect(pc))
	if res.Verified || !res.Has(domain.ReasonCredentialRevoked) {
		t.Fatalf("expected CredentialRevoked, got %+v", res)
	}
	if consumed, _ := h.ledger.IsConsumed(ctx, out.Submission.Nullifier); consumed {
		t.Fatalf("expected a rejected proof to leave the nullifier unconsumed")
	}

	if err := h.statuses.Set(ctx, "cred-1", domain.CredentialExpired); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if res := h.mustVerify(t, out.Submission, expect(pc)); !res.Has(domain.ReasonCredentialExpired) {
		t.Fatalf("expected CredentialExpired, got %+v", res)
	}
}

func TestCircuitRevocation(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	ctx := context.Background()

	accepted := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-a")))
	if res := h.mustVerify(t, accepted.Submission, expect(zktest.Context("verifier-a"))); !res.Verified {
		t.Fatalf("expected proof to verify before revocation, got %v", res.Reasons)
	}
	pending := h.mustProve(t, ageRequest("age-18", zktest.Context("verifier-b")))

	if err := h.registry.Revoke(ctx, "age-18", "key compromise"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	res := h.mustVerify(t, pending.Submission, expect(zktest.Context("verifier-b")))
	if res.Verified || !res.Has(domain.ReasonCircuitRevoked) {
		t.Fatalf("expected CircuitRevoked, got %+v", res)
	}
	if _, err := h.prove.Prove(ctx, ageRequest("age-18", zktest.Context("verifier-c"))); !errors.Is(err, domain.ErrCircuitRevoked) {
		t.Fatalf("expected proving to fail with ErrCircuitRevoked, got %v", err)
	}
	if err := h.registry.Activate(ctx, "age-18", "undo"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected revoked circuit to stay revoked, got %v", err)
	}

	removed, err := h.sweep.Execute(ctx, "age-18")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 swept nullifier, got %d", removed)
	}
}

func TestDeprecatedCircuit(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	ctx := context.Background()
	pc := zktest.Context("verifier-a")
	out := h.mustProve(t, ageRequest("age-18", pc))

	if err := h.registry.Deprecate(ctx, "age-18", "superseded"); err != nil {
		t.Fatalf("deprecate: %v", err)
	}
	if _, err := h.prove.Prove(ctx, ageRequest("age-18", zktest.Context("verifier-b"))); !errors.Is(err, domain.ErrCircuitInactive) {
		t.Fatalf("expected ErrCircuitInactive for new proofs, got %v", err)
	}
	if res := h.mustVerify(t, out.Submission, expect(pc)); !res.Verified {
		t.Fatalf("expected deprecated circuit to keep verifying, got %v", res.Reasons)
	}
}

func TestSelectiveDisclosure(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	pc := zktest.Context("verifier-a")

	req := ageRequest("age-18", pc)
	req.Disclose = domain.DisclosurePolicy{"nationality"}
	out := h.mustProve(t, req)
	if len(out.Opening.Opened) != 1 || out.Opening.Opened[0].Key != "nationality" {
		t.Fatalf("expected an opening of nationality, got %+v", out.Opening)
	}

	tampered := out.Submission
	tampered.Disclosed = []domain.DisclosedAttribute{{Slot: 3, Key: "nationality", Value: "DE"}}
	if res := h.mustVerify(t, tampered, expect(pc)); res.Verified || !res.Has(domain.ReasonDisclosureMismatch) {
		t.Fatalf("expected DisclosureMismatch for an altered value, got %+v", res)
	}

	hidden := out.Submission
	hidden.Disclosed = nil
	if res := h.mustVerify(t, hidden, expect(pc)); res.Verified || !res.Has(domain.ReasonDisclosureMismatch) {
		t.Fatalf("expected DisclosureMismatch when a masked slot is withheld, got %+v", res)
	}

	demanding := expect(pc)
	demanding.RequiredDisclosures = []string{"nationality", "income"}
	if res := h.mustVerify(t, out.Submission, demanding); res.Verified || !res.Has(domain.ReasonDisclosureMismatch) {
		t.Fatalf("expected DisclosureMismatch for a missing required attribute, got %+v", res)
	}

	res := h.mustVerify(t, out.Submission, expect(pc))
	if !res.Verified {
		t.Fatalf("expected disclosure proof to verify, got %v", res.Reasons)
	}
	if res.Disclosed["nationality"] != "NL" {
		t.Fatalf("expected nationality NL, got %v", res.Disclosed)
	}
	if _, leaked := res.Disclosed["birthYear"]; leaked {
		t.Fatalf("expected birthYear to stay private")
	}
}

func TestSelectiveDisclosure_PrivateAttributeRefused(t *testing.T) {
	h := newHarness(t)
	desc, params := zktest.Descriptor(t, "age-18-private-income", domain.PredicateSpec{
		Kind:      domain.KindAgeAtLeast,
		Subject:   "birthYear",
		Threshold: 18,
		Private:   []string{"income"},
	})
	h.activate(t, desc, params)

	for _, key := range []string{"birthYear", "income", "ssn"} {
		req := ageRequest("age-18-private-income", zktest.Context("verifier-a"))
		req.Disclose = domain.DisclosurePolicy{key}
		if _, err := h.prove.Prove(context.Background(), req); !errors.Is(err, domain.ErrPolicyViolation) {
			t.Fatalf("expected ErrPolicyViolation disclosing %s, got %v", key, err)
		}
	}
}

type denyGuard struct {
	seen []usecase.DisclosureInput
}

func (g *denyGuard) Evaluate(_ context.Context, in usecase.DisclosureInput) (usecase.DisclosureDecision, error) {
	g.seen = append(g.seen, in)
	return usecase.DisclosureDecision{Allow: false, Deny: []string{"no disclosure to " + in.VerifierID}}, nil
}

func TestProve_GuardDenies(t *testing.T) {
	guard := &denyGuard{}
	h := newHarness(t, withGuard(guard))
	h.activeAge(t, "age-18", 18)

	req := ageRequest("age-18", zktest.Context("verifier-a"))
	req.Disclose = domain.DisclosurePolicy{"nationality"}
	if _, err := h.prove.Prove(context.Background(), req); !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}
	if len(guard.seen) != 1 || guard.seen[0].Disclose[0] != "nationality" {
		t.Fatalf("expected guard to see the request, got %+v", guard.seen)
	}
}

type signatureCheck struct {
	calls int
}

func (s *signatureCheck) VerifyIssuer(_ context.Context, cred domain.VerifiableCredential) error {
	s.calls++
	if string(cred.IssuerSignature) != "issuer-ok" {
		return errors.New("bad signature")
	}
	return nil
}

func TestProve_IssuerSignatureChecked(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	issuers := &signatureCheck{}
	h.prove.Issuers = issuers

	req := ageRequest("age-18", zktest.Context("verifier-a"))
	if _, err := h.prove.Prove(context.Background(), req); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for an unsigned credential, got %v", err)
	}
	if h.prove.Pool.Pending() != 0 {
		t.Fatalf("expected no proving work to be queued")
	}

	req.Credential.IssuerSignature = []byte("issuer-ok")
	out := h.mustProve(t, req)
	if res := h.mustVerify(t, out.Submission, expect(req.Context)); !res.Verified {
		t.Fatalf("expected signed credential to verify, got %v", res.Reasons)
	}
	if issuers.calls != 2 {
		t.Fatalf("expected issuer check per request, got %d", issuers.calls)
	}
}

func TestProve_ExpiredCredential(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	h := newHarness(t, withClock(func() time.Time { return now }))
	h.activeAge(t, "age-18", 18)

	req := ageRequest("age-18", zktest.Context("verifier-a"))
	expired := now.Add(-time.Hour)
	req.Credential.ExpiresAt = &expired
	if _, err := h.prove.Prove(context.Background(), req); !errors.Is(err, domain.ErrCredentialExpired) {
		t.Fatalf("expected ErrCredentialExpired, got %v", err)
	}
}

func TestProve_RequestValidation(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	ctx := context.Background()

	if _, err := h.prove.Prove(ctx, ageRequest("missing", zktest.Context("verifier-a"))); !errors.Is(err, domain.ErrCircuitNotFound) {
		t.Fatalf("expected ErrCircuitNotFound, got %v", err)
	}

	noNonce := zktest.Context("verifier-a")
	noNonce.Nonce = ""
	if _, err := h.prove.Prove(ctx, ageRequest("age-18", noNonce)); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch without a nonce, got %v", err)
	}

	missing := ageRequest("age-18", zktest.Context("verifier-a"))
	delete(missing.Credential.Attributes, "birthYear")
	if _, err := h.prove.Prove(ctx, missing); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestProve_CancelledContext(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)

	ctx, cancel := context.WithCancel(context.Background())
	task, err := h.prove.Submit(ctx, ageRequest("age-18", zktest.Context("verifier-a")))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancel()
	if _, err := task.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	task.Cancel()
}
