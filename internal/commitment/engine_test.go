package commitment

import (
	"bytes"
	"errors"
	"testing"

	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/zk"
)

func vector(t *testing.T, birthYear int) domain.AttributeVector {
	t.Helper()
	n, err := normalize.New()
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	v, err := n.Normalize(domain.VerifiableCredential{
		ID: "cred-1",
		Attributes: map[string]any{
			"name":        "Alice",
			"birthYear":   birthYear,
			"income":      52000,
			"nationality": "NL",
		},
	}, normalize.IdentityV1)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return v
}

func TestCommit_VerifiesOwnOpening(t *testing.T) {
	e := NewEngine(nil)
	v := vector(t, 2000)
	c, err := e.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !Verify(c.Value, v, c.BlindingFactor) {
		t.Fatalf("expected commitment to verify")
	}
}

func TestCommit_Binding(t *testing.T) {
	e := NewEngine(nil)
	v := vector(t, 2000)
	c, err := e.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if Verify(c.Value, vector(t, 2001), c.BlindingFactor) {
		t.Fatalf("expected a different vector not to open the commitment")
	}
	other := c.BlindingFactor
	other[31] ^= 1
	if Verify(c.Value, v, other) {
		t.Fatalf("expected a different blinding factor not to open the commitment")
	}
}

func TestCommit_Hiding(t *testing.T) {
	e := NewEngine(nil)
	v := vector(t, 2000)
	a, err := e.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	b, err := e.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if a.Value == b.Value {
		t.Fatalf("expected fresh blinding to produce distinct commitments")
	}
}

func TestCommit_DeterministicReader(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, blindingEntropy)
	v := vector(t, 2000)
	a, err := NewEngine(bytes.NewReader(seed)).Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	b, err := NewEngine(bytes.NewReader(seed)).Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical entropy to give identical commitments")
	}
	if _, err := NewEngine(bytes.NewReader(seed[:4])).Commit(v); err == nil {
		t.Fatalf("expected short entropy to fail")
	}
}

func TestOpen(t *testing.T) {
	e := NewEngine(nil)
	v := vector(t, 2000)
	c, err := e.Commit(v)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	proof, err := e.Open(c.Value, v, c.BlindingFactor, []int{3, 3, 0})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(proof.Opened) != 2 {
		t.Fatalf("expected duplicate slots to collapse, got %d", len(proof.Opened))
	}
	if proof.Opened[0].Key != "nationality" || proof.Opened[0].Encoded != v.Values[3] {
		t.Fatalf("unexpected opening %+v", proof.Opened[0])
	}
	if _, err := e.Open(c.Value, v, c.BlindingFactor, []int{6}); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected padding slot to be rejected, got %v", err)
	}
	if _, err := e.Open(c.Value, vector(t, 1990), c.BlindingFactor, []int{0}); !errors.Is(err, domain.ErrBindingMismatch) {
		t.Fatalf("expected ErrBindingMismatch, got %v", err)
	}
}

func TestCompute_RejectsShortVector(t *testing.T) {
	v := vector(t, 2000)
	v.Values = v.Values[:zk.Width-1]
	if _, err := Compute(v, domain.FieldElement{}); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
