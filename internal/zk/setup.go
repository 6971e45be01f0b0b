package zk

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"golang.org/x/crypto/sha3"
)

const (
	ccsFile       = "circuit.ccs"
	provingFile   = "proving.key"
	verifyingFile = "verifying.key"
	predicateFile = "predicate.json"
)

// Params is the compiled constraint system and its Groth16 keys.
type Params struct {
	Predicate Predicate
	CCS       constraint.ConstraintSystem
	PK        groth16.ProvingKey
	VK        groth16.VerifyingKey
}

func Compile(p Predicate) (constraint.ConstraintSystem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewPredicateCircuit(p))
}

// Setup compiles p and runs a local Groth16 setup. The toxic waste comes from
// the process CSPRNG and is discarded; production deployments import keys from
// a ceremony through LoadParams instead.
func Setup(p Predicate) (*Params, error) {
	ccs, err := Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &Params{Predicate: p, CCS: ccs, PK: pk, VK: vk}, nil
}

func (p *Params) VerifyingKeyBytes() ([]byte, error) {
	return EncodeVerifyingKey(p.VK)
}

func (p *Params) VerifyingKeyHash() (string, error) {
	raw, err := p.VerifyingKeyBytes()
	if err != nil {
		return "", err
	}
	return HashVerifyingKey(raw), nil
}

func HashVerifyingKey(raw []byte) string {
	sum := sha3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func EncodeVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeVerifyingKey(raw []byte) (groth16.VerifyingKey, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty verifying key")
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("decode verifying key: %w", err)
	}
	return vk, nil
}

// ExportSolidity writes an on-chain verifier contract for vk.
func ExportSolidity(vk groth16.VerifyingKey, w io.Writer) error {
	return vk.ExportSolidity(w)
}

// SaveParams writes p into dir, creating it if needed.
func SaveParams(dir string, p *Params) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	pred, err := json.MarshalIndent(p.Predicate, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, predicateFile), pred, 0o644); err != nil {
		return err
	}
	writers := []struct {
		name string
		w    io.WriterTo
	}{
		{ccsFile, p.CCS},
		{provingFile, p.PK},
		{verifyingFile, p.VK},
	}
	for _, item := range writers {
		if err := writeFile(filepath.Join(dir, item.name), item.w); err != nil {
			return fmt.Errorf("write %s: %w", item.name, err)
		}
	}
	return nil
}

// LoadParams reads parameters previously written by SaveParams.
func LoadParams(dir string) (*Params, error) {
	raw, err := os.ReadFile(filepath.Join(dir, predicateFile))
	if err != nil {
		return nil, err
	}
	var pred Predicate
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("decode predicate: %w", err)
	}
	ccs := groth16.NewCS(ecc.BN254)
	pk := groth16.NewProvingKey(ecc.BN254)
	vk := groth16.NewVerifyingKey(ecc.BN254)
	readers := []struct {
		name string
		r    io.ReaderFrom
	}{
		{ccsFile, ccs},
		{provingFile, pk},
		{verifyingFile, vk},
	}
	for _, item := range readers {
		if err := readFile(filepath.Join(dir, item.name), item.r); err != nil {
			return nil, fmt.Errorf("read %s: %w", item.name, err)
		}
	}
	return &Params{Predicate: pred, CCS: ccs, PK: pk, VK: vk}, nil
}

func writeFile(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFile(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.ReadFrom(f)
	return err
}
