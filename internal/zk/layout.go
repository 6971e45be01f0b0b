package zk

import (
	"fmt"

	"zkcred/internal/domain"
)

// Width is the number of attribute slots every predicate circuit commits to.
const Width = 8

const Scheme = "groth16-bn254"

// Public signal positions. They follow the declaration order of the public
// fields of PredicateCircuit.
const (
	SignalCommitment = iota
	SignalNullifier
	SignalCircuit
	SignalContext
	SignalChallenge
	SignalThreshold
	SignalReference
	SignalMask
	SignalDisclosed = SignalMask + Width
	NbPublicSignals = SignalDisclosed + Width
)

// PublicInputSchema is the schema every descriptor of this circuit family declares.
func PublicInputSchema() []domain.FieldSpec {
	out := []domain.FieldSpec{
		{Name: "commitment", Type: domain.FieldScalar},
		{Name: "nullifier", Type: domain.FieldScalar},
		{Name: "circuit", Type: domain.FieldScalar},
		{Name: "context", Type: domain.FieldScalar},
		{Name: "challenge", Type: domain.FieldScalar},
		{Name: "threshold", Type: domain.FieldInteger},
		{Name: "reference", Type: domain.FieldInteger},
	}
	for i := 0; i < Width; i++ {
		out = append(out, domain.FieldSpec{Name: fmt.Sprintf("mask_%d", i), Type: domain.FieldBoolean})
	}
	for i := 0; i < Width; i++ {
		out = append(out, domain.FieldSpec{Name: fmt.Sprintf("disclosed_%d", i), Type: domain.FieldScalar})
	}
	return out
}

// MatchesSchema reports whether schema is exactly the circuit family layout.
func MatchesSchema(schema []domain.FieldSpec) error {
	want := PublicInputSchema()
	if len(schema) != len(want) {
		return fmt.Errorf("%w: expected %d public inputs, got %d", domain.ErrSchemaMismatch, len(want), len(schema))
	}
	for i := range want {
		if schema[i] != want[i] {
			return fmt.Errorf("%w: public input %d is %s/%s, expected %s/%s",
				domain.ErrSchemaMismatch, i, schema[i].Name, schema[i].Type, want[i].Name, want[i].Type)
		}
	}
	return nil
}
