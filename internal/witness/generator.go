package witness

import (
	"errors"
	"fmt"
	"math/big"

	"zkcred/internal/commitment"
	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/nullifier"
	"zkcred/internal/zk"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	gnarkwitness "github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
)

// ContextScoper maps a verifier context to the scope nullifiers are derived in.
type ContextScoper interface {
	ScopeContext(circuitID, contextID string) string
}

type Generator struct {
	Normalizer  *normalize.Normalizer
	Commitments *commitment.Engine
	Scope       ContextScoper
}

func NewGenerator(n *normalize.Normalizer, c *commitment.Engine, scope ContextScoper) *Generator {
	return &Generator{Normalizer: n, Commitments: c, Scope: scope}
}

// Witness is the assignment for one proving run. It must be zeroed with Zero
// once proving finishes, whatever the outcome.
type Witness struct {
	CircuitID string
	Predicate zk.Predicate
	Nullifier domain.Nullifier
	Opening   domain.OpeningProof

	public     []fr.Element
	assignment *zk.PredicateCircuit
	secrets    []*big.Int
	full       gnarkwitness.Witness
}

// CheckPolicy validates a disclosure policy against the circuit and returns the
// slots to disclose. It does no cryptographic work.
func (g *Generator) CheckPolicy(desc domain.CircuitDescriptor, v domain.AttributeVector, policy domain.DisclosurePolicy) ([]int, error) {
	if v.SchemaVersion != desc.Predicate.SchemaVersion {
		return nil, fmt.Errorf("%w: credential normalized as %s, circuit expects %s", domain.ErrSchemaMismatch, v.SchemaVersion, desc.Predicate.SchemaVersion)
	}
	slots := make([]int, 0, len(policy))
	for _, key := range policy.Normalized() {
		if desc.Predicate.IsPrivate(key) {
			return nil, fmt.Errorf("%w: %s may not be disclosed by circuit %s", domain.ErrPolicyViolation, key, desc.CircuitID)
		}
		slot := v.Slot(key)
		if slot < 0 {
			return nil, fmt.Errorf("%w: %s is not an attribute of the credential", domain.ErrPolicyViolation, key)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Build assembles the witness. Public signals are laid out in the order of the
// descriptor's public input schema, which must match the circuit family exactly.
func (g *Generator) Build(desc domain.CircuitDescriptor, v domain.AttributeVector, commitmentValue, blinding domain.FieldElement, policy domain.DisclosurePolicy, ctx domain.PublicContext) (*Witness, error) {
	if g == nil || g.Normalizer == nil || g.Commitments == nil {
		return nil, errors.New("witness generator is not configured")
	}
	if err := zk.MatchesSchema(desc.PublicInputSchema); err != nil {
		return nil, err
	}
	if len(v.Values) != zk.Width || len(v.Keys) != zk.Width {
		return nil, fmt.Errorf("%w: attribute vector must have %d slots", domain.ErrSchemaMismatch, zk.Width)
	}
	pred, err := g.Normalizer.PredicateSlots(desc.Predicate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaMismatch, err)
	}
	slots, err := g.CheckPolicy(desc, v, policy)
	if err != nil {
		return nil, err
	}
	if err := checkContext(desc.Predicate.Kind, ctx); err != nil {
		return nil, err
	}
	opening, err := g.Commitments.Open(commitmentValue, v, blinding, slots)
	if err != nil {
		return nil, err
	}

	attrs := make([]fr.Element, zk.Width)
	for i := range v.Values {
		if attrs[i], err = zk.FromDomain(v.Values[i]); err != nil {
			return nil, fmt.Errorf("%w: slot %d", domain.ErrSchemaMismatch, i)
		}
	}
	credTag, err := zk.FromDomain(v.CredentialTag)
	if err != nil {
		return nil, fmt.Errorf("%w: credential tag", domain.ErrSchemaMismatch)
	}
	layout, err := zk.FromDomain(v.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: layout", domain.ErrSchemaMismatch)
	}
	blind, err := zk.FromDomain(blinding)
	if err != nil {
		return nil, fmt.Errorf("%w: blinding factor", domain.ErrBindingMismatch)
	}
	commit, err := zk.FromDomain(commitmentValue)
	if err != nil {
		return nil, fmt.Errorf("%w: commitment", domain.ErrBindingMismatch)
	}

	scoped := ctx.ContextID()
	if g.Scope != nil {
		scoped = g.Scope.ScopeContext(desc.CircuitID, scoped)
	}
	circuitTag := zk.CircuitTag(desc.CircuitID)
	contextTag := zk.ContextTag(scoped)
	null := nullifier.Value(credTag, circuitTag, contextTag)

	public := make([]fr.Element, zk.NbPublicSignals)
	public[zk.SignalCommitment] = commit
	public[zk.SignalNullifier] = null
	public[zk.SignalCircuit] = circuitTag
	public[zk.SignalContext] = contextTag
	public[zk.SignalChallenge] = zk.Challenge(ctx)
	public[zk.SignalThreshold] = zk.FromInt64(desc.Predicate.Threshold)
	public[zk.SignalReference] = zk.FromInt64(ctx.Reference)
	for _, slot := range slots {
		public[zk.SignalMask+slot].SetOne()
		public[zk.SignalDisclosed+slot] = attrs[slot]
	}

	assignment, err := zk.PublicAssignment(public)
	if err != nil {
		return nil, err
	}
	w := &Witness{
		CircuitID: desc.CircuitID,
		Predicate: pred,
		Nullifier: domain.Nullifier{
			Value:     zk.ToDomain(null),
			CircuitID: desc.CircuitID,
			ContextID: scoped,
		},
		Opening:    opening,
		public:     public,
		assignment: assignment,
	}
	secret := func(e *fr.Element) *big.Int {
		b := zk.BigInt(*e)
		e.SetZero()
		w.secrets = append(w.secrets, b)
		return b
	}
	for i := range attrs {
		assignment.Attributes[i] = secret(&attrs[i])
	}
	assignment.Blinding = secret(&blind)
	assignment.Layout = secret(&layout)
	assignment.Credential = secret(&credTag)
	return w, nil
}

// PublicSignals returns the public inputs in schema order.
func (w *Witness) PublicSignals() []domain.FieldElement {
	return zk.EncodeSignals(w.public)
}

// Full returns the gnark witness for proving. It is wiped by Zero.
func (w *Witness) Full() (gnarkwitness.Witness, error) {
	if w.assignment == nil {
		return nil, errors.New("witness already zeroed")
	}
	if w.full != nil {
		return w.full, nil
	}
	full, err := frontend.NewWitness(w.assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	w.full = full
	return full, nil
}

// Zero overwrites every secret value held by the witness.
func (w *Witness) Zero() {
	if w == nil {
		return
	}
	for _, b := range w.secrets {
		wipeBig(b)
	}
	w.secrets = nil
	if w.full != nil {
		if vec, ok := w.full.Vector().(fr.Vector); ok {
			for i := range vec {
				vec[i].SetZero()
			}
		}
		w.full = nil
	}
	w.assignment = nil
}

func wipeBig(b *big.Int) {
	if b == nil {
		return
	}
	words := b.Bits()
	for i := range words {
		words[i] = 0
	}
	b.SetInt64(0)
}

func checkContext(kind domain.CircuitKind, ctx domain.PublicContext) error {
	switch {
	case ctx.VerifierID == "":
		return fmt.Errorf("%w: verifier id is required", domain.ErrSchemaMismatch)
	case ctx.Domain == "":
		return fmt.Errorf("%w: domain is required", domain.ErrSchemaMismatch)
	case ctx.Nonce == "":
		return fmt.Errorf("%w: challenge nonce is required", domain.ErrSchemaMismatch)
	case ctx.Reference < 0:
		return fmt.Errorf("%w: reference must not be negative", domain.ErrSchemaMismatch)
	case kind == domain.KindAgeAtLeast && ctx.Reference == 0:
		return fmt.Errorf("%w: age predicates need a reference year", domain.ErrSchemaMismatch)
	}
	return nil
}
