package domain

import (
	"encoding/hex"
	"errors"
	"strings"
)

// FieldElement is a scalar-field element in canonical 32-byte big-endian form.
type FieldElement [32]byte

var errFieldElementEncoding = errors.New("field element must be 32 bytes of hex")

func (f FieldElement) IsZero() bool {
	return f == FieldElement{}
}

func (f FieldElement) Hex() string {
	return "0x" + hex.EncodeToString(f[:])
}

func (f FieldElement) String() string {
	return f.Hex()
}

func (f FieldElement) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *FieldElement) UnmarshalText(text []byte) error {
	parsed, err := ParseFieldElement(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFieldElement decodes a 0x-prefixed (or bare) 64 character hex string.
// Range checks against the field modulus are left to the zk layer.
func ParseFieldElement(s string) (FieldElement, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 64 {
		return FieldElement{}, errFieldElementEncoding
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return FieldElement{}, errFieldElementEncoding
	}
	var out FieldElement
	copy(out[:], raw)
	return out, nil
}

// Wipe overwrites the element in place.
func (f *FieldElement) Wipe() {
	for i := range f {
		f[i] = 0
	}
}
