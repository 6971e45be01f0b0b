package zk

import (
	"errors"
	"fmt"
	"math/big"

	"zkcred/internal/domain"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
)

const (
	g1Size = bn254.SizeOfG1AffineCompressed
	g2Size = bn254.SizeOfG2AffineCompressed
	// ProofSize is the encoded length of Ar, Bs and Krs.
	ProofSize = 2*g1Size + g2Size
)

var (
	ErrMalformedProof   = errors.New("malformed proof")
	ErrMalformedSignals = errors.New("malformed public signals")
	ErrInvalidProof     = errors.New("invalid proof")
)

// EncodeProof serializes the three proof points in compressed form.
func EncodeProof(p groth16.Proof) ([]byte, error) {
	bp, ok := p.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unsupported proof type %T", p)
	}
	if len(bp.Commitments) != 0 {
		return nil, errors.New("proofs carrying commitments are not supported")
	}
	ar := bp.Ar.Bytes()
	bs := bp.Bs.Bytes()
	krs := bp.Krs.Bytes()
	out := make([]byte, 0, ProofSize)
	out = append(out, ar[:]...)
	out = append(out, bs[:]...)
	out = append(out, krs[:]...)
	return out, nil
}

func DecodeProof(raw []byte) (groth16.Proof, error) {
	if len(raw) != ProofSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedProof, ProofSize, len(raw))
	}
	var p groth16bn254.Proof
	if _, err := p.Ar.SetBytes(raw[:g1Size]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if _, err := p.Bs.SetBytes(raw[g1Size : g1Size+g2Size]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if _, err := p.Krs.SetBytes(raw[g1Size+g2Size:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	return &p, nil
}

// DecodeSignals parses public signals, rejecting a wrong count or any
// non-canonical element.
func DecodeSignals(signals []domain.FieldElement) ([]fr.Element, error) {
	if len(signals) != NbPublicSignals {
		return nil, fmt.Errorf("%w: expected %d signals, got %d", ErrMalformedSignals, NbPublicSignals, len(signals))
	}
	out := make([]fr.Element, len(signals))
	for i, s := range signals {
		e, err := FromDomain(s)
		if err != nil {
			return nil, fmt.Errorf("%w: signal %d: %v", ErrMalformedSignals, i, err)
		}
		out[i] = e
	}
	return out, nil
}

func EncodeSignals(signals []fr.Element) []domain.FieldElement {
	out := make([]domain.FieldElement, len(signals))
	for i := range signals {
		out[i] = ToDomain(signals[i])
	}
	return out
}

// PublicAssignment places public signals into the circuit's public fields.
func PublicAssignment(signals []fr.Element) (*PredicateCircuit, error) {
	if len(signals) != NbPublicSignals {
		return nil, fmt.Errorf("%w: expected %d signals, got %d", ErrMalformedSignals, NbPublicSignals, len(signals))
	}
	v := func(i int) *big.Int { return BigInt(signals[i]) }
	a := &PredicateCircuit{
		Commitment: v(SignalCommitment),
		Nullifier:  v(SignalNullifier),
		Circuit:    v(SignalCircuit),
		Context:    v(SignalContext),
		Challenge:  v(SignalChallenge),
		Threshold:  v(SignalThreshold),
		Reference:  v(SignalReference),
	}
	for i := 0; i < Width; i++ {
		a.Mask[i] = v(SignalMask + i)
		a.Disclosed[i] = v(SignalDisclosed + i)
	}
	return a, nil
}

func PublicWitness(signals []fr.Element) (witness.Witness, error) {
	a, err := PublicAssignment(signals)
	if err != nil {
		return nil, err
	}
	return frontend.NewWitness(a, ecc.BN254.ScalarField(), frontend.PublicOnly())
}

// Verify checks a Groth16 proof against vk and the public signals.
func Verify(vk groth16.VerifyingKey, proof []byte, signals []fr.Element) error {
	p, err := DecodeProof(proof)
	if err != nil {
		return err
	}
	pub, err := PublicWitness(signals)
	if err != nil {
		return err
	}
	if err := groth16.Verify(p, vk, pub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}
