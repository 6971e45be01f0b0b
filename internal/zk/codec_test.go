package zk

import (
	"errors"
	"testing"

	"zkcred/internal/domain"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func TestDecodeSignals_Count(t *testing.T) {
	if _, err := DecodeSignals(make([]domain.FieldElement, NbPublicSignals-1)); !errors.Is(err, ErrMalformedSignals) {
		t.Fatalf("expected ErrMalformedSignals, got %v", err)
	}
	if _, err := DecodeSignals(make([]domain.FieldElement, NbPublicSignals)); err != nil {
		t.Fatalf("expected zero signals to decode: %v", err)
	}
}

func TestDecodeSignals_NonCanonical(t *testing.T) {
	signals := make([]domain.FieldElement, NbPublicSignals)
	modulus := fr.Modulus().Bytes()
	copy(signals[3][32-len(modulus):], modulus)
	if _, err := DecodeSignals(signals); !errors.Is(err, ErrMalformedSignals) {
		t.Fatalf("expected the modulus to be rejected, got %v", err)
	}
}

func TestEncodeSignals_RoundTrip(t *testing.T) {
	in := []fr.Element{FromInt64(0), FromInt64(7), CircuitTag("c")}
	out := EncodeSignals(in)
	for i := range in {
		back, err := FromDomain(out[i])
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if !back.Equal(&in[i]) {
			t.Fatalf("signal %d changed", i)
		}
	}
}

func TestDecodeProof_Length(t *testing.T) {
	if _, err := DecodeProof(make([]byte, ProofSize-1)); !errors.Is(err, ErrMalformedProof) {
		t.Fatalf("expected ErrMalformedProof, got %v", err)
	}
	if ProofSize != 128 {
		t.Fatalf("expected 128 byte proofs, got %d", ProofSize)
	}
}

func TestMatchesSchema(t *testing.T) {
	schema := PublicInputSchema()
	if len(schema) != NbPublicSignals {
		t.Fatalf("expected %d inputs, got %d", NbPublicSignals, len(schema))
	}
	if err := MatchesSchema(schema); err != nil {
		t.Fatalf("expected own schema to match: %v", err)
	}
	swapped := PublicInputSchema()
	swapped[0], swapped[1] = swapped[1], swapped[0]
	if err := MatchesSchema(swapped); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if err := MatchesSchema(schema[:5]); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected short schema to mismatch, got %v", err)
	}
}

func TestHashToField_Separation(t *testing.T) {
	a := CredentialTag("x")
	b := CircuitTag("x")
	if a.Equal(&b) {
		t.Fatalf("expected tags to separate domains")
	}
	c := HashStrings(TagContext, "ab", "c")
	d := HashStrings(TagContext, "a", "bc")
	if c.Equal(&d) {
		t.Fatalf("expected length prefixes to separate parts")
	}
	e := HashStrings(TagContext, "ab", "c")
	if !c.Equal(&e) {
		t.Fatalf("expected hashing to be deterministic")
	}
}

func TestChallenge_CoversNonce(t *testing.T) {
	ctx := domain.PublicContext{VerifierID: "v", Domain: "d", Nonce: "1"}
	a := Challenge(ctx)
	ctx.Nonce = "2"
	b := Challenge(ctx)
	if a.Equal(&b) {
		t.Fatalf("expected nonce to change the challenge")
	}
}

func TestSaveAndLoadParams(t *testing.T) {
	p := Predicate{Kind: domain.KindPossession, Subject: 0}
	p.Private[0] = true
	params, err := Setup(p)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	dir := t.TempDir()
	if err := SaveParams(dir, params); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadParams(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Predicate != p {
		t.Fatalf("expected predicate %+v, got %+v", p, loaded.Predicate)
	}
	want, _ := params.VerifyingKeyHash()
	got, _ := loaded.VerifyingKeyHash()
	if want != got {
		t.Fatalf("expected verifying key to survive a round trip")
	}
	raw, _ := params.VerifyingKeyBytes()
	vk, err := DecodeVerifyingKey(raw)
	if err != nil {
		t.Fatalf("decode vk: %v", err)
	}
	if vk.NbPublicWitness() != NbPublicSignals {
		t.Fatalf("expected %d public inputs, got %d", NbPublicSignals, vk.NbPublicWitness())
	}
}
