// Package zktest builds circuit fixtures for tests. Groth16 setup is slow, so
// parameters are compiled once per predicate and shared by the test binary.
package zktest

import (
	"sync"
	"testing"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/zk"
)

var (
	mu     sync.Mutex
	params = make(map[zk.Predicate]*zk.Params)
)

// Params returns shared parameters for p.
func Params(t testing.TB, p zk.Predicate) *zk.Params {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()
	if cached, ok := params[p]; ok {
		return cached
	}
	out, err := zk.Setup(p)
	if err != nil {
		t.Fatalf("setup %s circuit: %v", p.Kind, err)
	}
	params[p] = out
	return out
}

// Normalizer returns a normalizer for the identity schema.
func Normalizer(t testing.TB) *normalize.Normalizer {
	t.Helper()
	n, err := normalize.New(normalize.IdentitySchema)
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	return n
}

// Descriptor builds a draft descriptor for spec over the identity schema and
// returns it with its parameters. ProvingParamsRef is the circuit id.
func Descriptor(t testing.TB, circuitID string, spec domain.PredicateSpec) (domain.CircuitDescriptor, *zk.Params) {
	t.Helper()
	if spec.SchemaVersion == "" {
		spec.SchemaVersion = normalize.IdentityV1
	}
	pred, err := Normalizer(t).PredicateSlots(spec)
	if err != nil {
		t.Fatalf("predicate slots: %v", err)
	}
	p := Params(t, pred)
	vk, err := p.VerifyingKeyBytes()
	if err != nil {
		t.Fatalf("encode verifying key: %v", err)
	}
	return domain.CircuitDescriptor{
		CircuitID:         circuitID,
		Version:           1,
		Name:              circuitID,
		Predicate:         spec,
		PublicInputSchema: zk.PublicInputSchema(),
		ProvingScheme:     zk.Scheme,
		ProvingParamsRef:  circuitID,
		VerifyingKey:      vk,
	}, p
}

// AgeAtLeast is the descriptor of an ageAtLeast(threshold) circuit over birthYear.
func AgeAtLeast(t testing.TB, circuitID string, threshold int64) (domain.CircuitDescriptor, *zk.Params) {
	t.Helper()
	return Descriptor(t, circuitID, domain.PredicateSpec{
		Kind:      domain.KindAgeAtLeast,
		Subject:   "birthYear",
		Threshold: threshold,
	})
}

// Credential is an identity credential born in birthYear.
func Credential(id string, birthYear int64) domain.VerifiableCredential {
	return domain.VerifiableCredential{
		ID:        id,
		IssuerID:  "issuer-1",
		SubjectID: "subject-" + id,
		IssuedAt:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Attributes: map[string]any{
			"name":        "Alice",
			"birthYear":   birthYear,
			"income":      int64(52000),
			"nationality": "NL",
		},
	}
}

// Context is a verifier context with reference year 2024.
func Context(verifierID string) domain.PublicContext {
	return domain.PublicContext{
		VerifierID: verifierID,
		Domain:     "example.org",
		Nonce:      "nonce-1",
		Reference:  2024,
	}
}
