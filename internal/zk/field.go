package zk

import (
	"encoding/binary"
	"errors"
	"math/big"

	"zkcred/internal/domain"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"
)

// Hash-to-field domain separation tags.
const (
	TagCredential = "zkcred/credential"
	TagCircuit    = "zkcred/circuit"
	TagContext    = "zkcred/context"
	TagChallenge  = "zkcred/challenge"
	TagLayout     = "zkcred/layout"
	TagAttribute  = "zkcred/attribute"
	TagExtra      = "zkcred/extra"
)

var ErrNonCanonical = errors.New("field element is not canonical")

// HashToField maps tagged, length-prefixed parts to a scalar with Keccak-256.
func HashToField(tag string, parts ...[]byte) fr.Element {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(tag))
	h.Write([]byte{0})
	var size [4]byte
	for _, part := range parts {
		binary.BigEndian.PutUint32(size[:], uint32(len(part)))
		h.Write(size[:])
		h.Write(part)
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func HashStrings(tag string, parts ...string) fr.Element {
	raw := make([][]byte, len(parts))
	for i, p := range parts {
		raw[i] = []byte(p)
	}
	return HashToField(tag, raw...)
}

func CredentialTag(credentialID string) fr.Element {
	return HashStrings(TagCredential, credentialID)
}

func CircuitTag(circuitID string) fr.Element {
	return HashStrings(TagCircuit, circuitID)
}

func ContextTag(contextID string) fr.Element {
	return HashStrings(TagContext, contextID)
}

// Challenge binds the full presentation context, nonce included.
func Challenge(ctx domain.PublicContext) fr.Element {
	return HashStrings(TagChallenge, ctx.VerifierID, ctx.Domain, ctx.Nonce)
}

// MiMC hashes field elements with the same permutation the circuit uses.
func MiMC(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func ToDomain(e fr.Element) domain.FieldElement {
	return domain.FieldElement(e.Bytes())
}

// FromDomain rejects encodings at or above the modulus.
func FromDomain(f domain.FieldElement) (fr.Element, error) {
	var out fr.Element
	if err := out.SetBytesCanonical(f[:]); err != nil {
		return fr.Element{}, ErrNonCanonical
	}
	return out, nil
}

func FromInt64(v int64) fr.Element {
	var out fr.Element
	out.SetInt64(v)
	return out
}

func BigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
