package zk

import (
	"fmt"

	"zkcred/internal/domain"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// Predicate fixes the compile-time shape of a PredicateCircuit.
type Predicate struct {
	Kind    domain.CircuitKind `json:"kind"`
	Subject int                `json:"subject"`
	Private [Width]bool        `json:"private"`
}

func (p Predicate) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown circuit kind %q", domain.ErrInvalidDescriptor, p.Kind)
	}
	if p.Subject < 0 || p.Subject >= Width {
		return fmt.Errorf("%w: subject slot %d out of range", domain.ErrInvalidDescriptor, p.Subject)
	}
	if !p.Private[p.Subject] {
		return fmt.Errorf("%w: subject slot must be private", domain.ErrInvalidDescriptor)
	}
	return nil
}

// PredicateCircuit proves knowledge of an opening of a committed attribute
// vector such that:
//
//	commitment = MiMC(blinding, layout, credential, a_0..a_{w-1})
//	nullifier  = MiMC(credential, circuit, context)
//	disclosed_i = mask_i * a_i, with mask_i = 0 on private slots
//	the predicate of Kind holds over a_subject
type PredicateCircuit struct {
	Commitment frontend.Variable        `gnark:"commitment,public"`
	Nullifier  frontend.Variable        `gnark:"nullifier,public"`
	Circuit    frontend.Variable        `gnark:"circuit,public"`
	Context    frontend.Variable        `gnark:"context,public"`
	Challenge  frontend.Variable        `gnark:"challenge,public"`
	Threshold  frontend.Variable        `gnark:"threshold,public"`
	Reference  frontend.Variable        `gnark:"reference,public"`
	Mask       [Width]frontend.Variable `gnark:"mask,public"`
	Disclosed  [Width]frontend.Variable `gnark:"disclosed,public"`

	Attributes [Width]frontend.Variable `gnark:"attributes,secret"`
	Blinding   frontend.Variable        `gnark:"blinding,secret"`
	Layout     frontend.Variable        `gnark:"layout,secret"`
	Credential frontend.Variable        `gnark:"credential,secret"`

	Predicate Predicate `gnark:"-"`
}

func NewPredicateCircuit(p Predicate) *PredicateCircuit {
	return &PredicateCircuit{Predicate: p}
}

func (c *PredicateCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Blinding, c.Layout, c.Credential)
	h.Write(c.Attributes[:]...)
	api.AssertIsEqual(h.Sum(), c.Commitment)

	h.Reset()
	h.Write(c.Credential, c.Circuit, c.Context)
	api.AssertIsEqual(h.Sum(), c.Nullifier)

	for i := 0; i < Width; i++ {
		api.AssertIsBoolean(c.Mask[i])
		api.AssertIsEqual(api.Mul(c.Mask[i], api.Sub(c.Attributes[i], c.Disclosed[i])), 0)
		api.AssertIsEqual(api.Mul(api.Sub(1, c.Mask[i]), c.Disclosed[i]), 0)
		if c.Predicate.Private[i] {
			api.AssertIsEqual(c.Mask[i], 0)
		}
	}

	subject := c.Attributes[c.Predicate.Subject]
	switch c.Predicate.Kind {
	case domain.KindAgeAtLeast:
		api.AssertIsLessOrEqual(subject, c.Reference)
		api.AssertIsLessOrEqual(c.Threshold, api.Sub(c.Reference, subject))
	case domain.KindAtLeast:
		api.AssertIsLessOrEqual(c.Threshold, subject)
	case domain.KindEquals:
		api.AssertIsEqual(subject, c.Threshold)
	case domain.KindPossession:
		api.AssertIsDifferent(subject, 0)
	default:
		return fmt.Errorf("unknown circuit kind %q", c.Predicate.Kind)
	}

	// Public inputs that no predicate reads still need a constraint, otherwise
	// the verifying key ignores their value.
	api.Mul(c.Challenge, c.Challenge)
	if c.Predicate.Kind != domain.KindAgeAtLeast {
		api.Mul(c.Reference, c.Reference)
	}
	if c.Predicate.Kind == domain.KindPossession {
		api.Mul(c.Threshold, c.Threshold)
	}
	return nil
}
