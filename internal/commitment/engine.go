package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"zkcred/internal/domain"
	"zkcred/internal/zk"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// blindingEntropy is read per blinding factor; 16 bytes above the field size
// keep the modular bias negligible.
const blindingEntropy = fr.Bytes + 16

// Engine computes MiMC commitments over attribute vectors:
//
//	C = MiMC(r, layout, credentialTag, a_0 .. a_{w-1})
//
// Binding follows from collision resistance of MiMC, hiding from the uniform
// blinding factor r.
type Engine struct {
	rand io.Reader
}

// NewEngine draws blinding factors from r, or crypto/rand when r is nil.
func NewEngine(r io.Reader) *Engine {
	if r == nil {
		r = rand.Reader
	}
	return &Engine{rand: r}
}

func (e *Engine) Commit(v domain.AttributeVector) (domain.Commitment, error) {
	if err := checkVector(v); err != nil {
		return domain.Commitment{}, err
	}
	blinding, err := e.blindingFactor()
	if err != nil {
		return domain.Commitment{}, err
	}
	value, err := Compute(v, zk.ToDomain(blinding))
	if err != nil {
		return domain.Commitment{}, err
	}
	return domain.Commitment{Value: value, BlindingFactor: zk.ToDomain(blinding)}, nil
}

// Open checks that commitment opens to v under blinding and returns an
// opening for the requested slots. It fails closed with ErrBindingMismatch.
func (e *Engine) Open(commitment domain.FieldElement, v domain.AttributeVector, blinding domain.FieldElement, indices []int) (domain.OpeningProof, error) {
	if !Verify(commitment, v, blinding) {
		return domain.OpeningProof{}, domain.ErrBindingMismatch
	}
	opened := make([]domain.OpenedSlot, 0, len(indices))
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(v.Values) || v.Keys[idx] == "" {
			return domain.OpeningProof{}, fmt.Errorf("%w: slot %d is not an attribute", domain.ErrSchemaMismatch, idx)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		opened = append(opened, domain.OpenedSlot{Slot: idx, Key: v.Keys[idx], Encoded: v.Values[idx]})
	}
	return domain.OpeningProof{Commitment: commitment, Opened: opened}, nil
}

// Verify reports whether commitment opens to v under blinding.
func Verify(commitment domain.FieldElement, v domain.AttributeVector, blinding domain.FieldElement) bool {
	got, err := Compute(v, blinding)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got[:], commitment[:]) == 1
}

// Compute evaluates the commitment function.
func Compute(v domain.AttributeVector, blinding domain.FieldElement) (domain.FieldElement, error) {
	if err := checkVector(v); err != nil {
		return domain.FieldElement{}, err
	}
	inputs := make([]fr.Element, 0, 3+zk.Width)
	for _, raw := range []domain.FieldElement{blinding, v.Layout, v.CredentialTag} {
		e, err := zk.FromDomain(raw)
		if err != nil {
			return domain.FieldElement{}, err
		}
		inputs = append(inputs, e)
	}
	for _, raw := range v.Values {
		e, err := zk.FromDomain(raw)
		if err != nil {
			return domain.FieldElement{}, err
		}
		inputs = append(inputs, e)
	}
	out := zk.ToDomain(zk.MiMC(inputs...))
	for i := range inputs {
		inputs[i].SetZero()
	}
	return out, nil
}

func (e *Engine) blindingFactor() (fr.Element, error) {
	var buf [blindingEntropy]byte
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()
	if _, err := io.ReadFull(e.rand, buf[:]); err != nil {
		return fr.Element{}, fmt.Errorf("read blinding entropy: %w", err)
	}
	var r fr.Element
	r.SetBytes(buf[:])
	if r.IsZero() {
		return fr.Element{}, errors.New("degenerate blinding factor")
	}
	return r, nil
}

func checkVector(v domain.AttributeVector) error {
	if len(v.Values) != zk.Width || len(v.Keys) != zk.Width {
		return fmt.Errorf("%w: attribute vector must have %d slots", domain.ErrSchemaMismatch, zk.Width)
	}
	return nil
}
